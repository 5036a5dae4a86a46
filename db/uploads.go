package db

import (
	"time"

	"github.com/rewindfm/rewind/models"
)

// CreateUpload inserts a new upload record in the 'uploaded' state and
// returns its id.
func (db *DB) CreateUpload(upload *models.Upload) (int64, error) {
	if upload.UploadDate.IsZero() {
		upload.UploadDate = time.Now().UTC()
	}
	upload.ProcessingStatus = models.StatusUploaded

	result, err := db.Exec(`
	INSERT INTO uploads (user_id, file_path, file_size, upload_date, processed, processing_status)
	VALUES (?, ?, ?, ?, 0, ?)`,
		upload.UserID, upload.FilePath, upload.FileSize, upload.UploadDate, upload.ProcessingStatus)

	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// FinishUpload transitions an upload out of the 'uploaded' state. The WHERE
// clause makes the transition one-way: a row already completed or failed is
// left untouched.
func (db *DB) FinishUpload(uploadID int64, status models.UploadStatus) error {
	processed := status == models.StatusCompleted

	_, err := db.Exec(`
	UPDATE uploads
	SET processing_status = ?, processed = ?
	WHERE id = ? AND processing_status = ?`,
		status, processed, uploadID, models.StatusUploaded)

	return err
}

// GetUpload retrieves a single upload by id. Returns nil when absent.
func (db *DB) GetUpload(uploadID int64) (*models.Upload, error) {
	uploads, err := db.queryUploads(`
	SELECT id, user_id, file_path, file_size, upload_date, processed, processing_status
	FROM uploads WHERE id = ?`, uploadID)
	if err != nil || len(uploads) == 0 {
		return nil, err
	}
	return uploads[0], nil
}

// ListUploads returns all uploads for a user, newest first.
func (db *DB) ListUploads(userID int64) ([]*models.Upload, error) {
	return db.queryUploads(`
	SELECT id, user_id, file_path, file_size, upload_date, processed, processing_status
	FROM uploads
	WHERE user_id = ?
	ORDER BY upload_date DESC, id DESC`, userID)
}

func (db *DB) queryUploads(query string, args ...any) ([]*models.Upload, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*models.Upload{}

	for rows.Next() {
		upload := &models.Upload{}
		err := rows.Scan(
			&upload.ID, &upload.UserID, &upload.FilePath, &upload.FileSize,
			&upload.UploadDate, &upload.Processed, &upload.ProcessingStatus)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}
