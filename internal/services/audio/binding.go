package audio

import (
	"sync"

	"github.com/ternarybob/handoff/internal/models"
)

// Binding ties at most one live blob to the current valid audio artifact.
// Sync acquires when audio becomes valid and releases when it becomes
// invalid, is removed or is superseded. Release must be called on teardown.
type Binding struct {
	mu      sync.Mutex
	store   *BlobStore
	key     string
	payload string
}

// NewBinding creates a binding over store
func NewBinding(store *BlobStore) *Binding {
	return &Binding{store: store}
}

// Sync reconciles the bound blob with artifact. valid reports whether the
// artifact's source text matches the current document. It returns the key
// of the playable blob, or "" when nothing is bound.
func (b *Binding) Sync(artifact *models.AudioArtifact, valid bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if artifact == nil || artifact.Base64 == "" || !valid {
		b.releaseLocked()
		return "", nil
	}

	if b.key != "" && b.payload == artifact.Base64 {
		return b.key, nil
	}

	wav, err := EncodeBase64PCM(artifact.Base64)
	if err != nil {
		b.releaseLocked()
		return "", err
	}

	b.releaseLocked()
	b.key = b.store.Create(wav)
	b.payload = artifact.Base64
	return b.key, nil
}

// Key returns the bound blob key, "" when nothing is bound
func (b *Binding) Key() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// Release revokes the bound blob, if any
func (b *Binding) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *Binding) releaseLocked() {
	if b.key == "" {
		return
	}
	b.store.Revoke(b.key)
	b.key = ""
	b.payload = ""
}
