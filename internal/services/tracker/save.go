package tracker

// BeginSave enters the saving state. It requires unsaved changes, a
// persisted identity and no save already in flight.
func (t *Tracker) BeginSave() error {
	var err error
	t.update(func() {
		switch {
		case t.saving:
			err = ErrSaveInFlight
		case t.identity == "" || !t.dirtyLocked():
			err = ErrSaveNotAllowed
		default:
			t.saving = true
		}
	})
	return err
}

// EndSave leaves the saving state. On success callers Commit the saved
// snapshot; on failure the changes stay dirty.
func (t *Tracker) EndSave(err error) {
	t.update(func() {
		t.saving = false
		t.lastSaveErr = err
	})
}

// LastSaveError returns the error of the most recent save, nil on success
func (t *Tracker) LastSaveError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSaveErr
}

// Saving reports whether a save is in flight
func (t *Tracker) Saving() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saving
}
