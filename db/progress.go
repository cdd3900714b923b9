package db

// ProgressUpdater receives one call per processed item of a batch.
type ProgressUpdater interface {
	UpdateProgress(curr int, total int, message string)
}

// UpdateProgress forwards to progress when it is set.
func UpdateProgress(progress ProgressUpdater, curr int, total int, message string) {
	if progress != nil {
		progress.UpdateProgress(curr, total, message)
	}
}
