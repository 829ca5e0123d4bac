package models

// Wire formats of the AI backend endpoints

type GenerateTextRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type GenerateTextResponse struct {
	GeneratedText string `json:"generated_text"`
}

type ChatRequest struct {
	DocumentContent string          `json:"documentContent" validate:"required"`
	UserPrompt      string          `json:"userPrompt" validate:"required"`
	Records         []PatientRecord `json:"records"`
}

type ModifyTextRequest struct {
	SelectedMarkdown string `json:"selectedMarkdown" validate:"required"`
	Instruction      string `json:"instruction" validate:"required"`
}

type ModifyTextResponse struct {
	ModifiedText string `json:"modified_text"`
}

type GenerateAudioRequest struct {
	Text string `json:"text" validate:"required"`
}

type GenerateAudioResponse struct {
	AudioContent string `json:"audio_content"` // base64 PCM 24kHz 16-bit mono
}

type GenerateSlidesRequest struct {
	DocumentContent string `json:"documentContent" validate:"required"`
}
