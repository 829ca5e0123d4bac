package main

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/handoff/internal/models"
)

func TestFormatDocument_AudioSummary(t *testing.T) {
	// one second of 24kHz 16-bit mono silence
	pcm := make([]byte, 48000)
	doc := &models.HandoffDocument{
		ID:                 "doc_1",
		DocumentType:       models.DocumentTypeMDHandoff,
		Content:            "Stable",
		AudioSummaryBase64: base64.StdEncoding.EncodeToString(pcm),
	}

	out := formatDocument(doc)
	assert.Contains(t, out, "**Audio summary:** 1.0s")
	assert.Contains(t, out, "Stable")

	doc.AudioSummaryBase64 = "not base64!"
	assert.Contains(t, formatDocument(doc), "**Audio summary:** unreadable")
}
