package upload

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// MaxProofBytes caps proof-of-payment uploads at 5 MB.
const MaxProofBytes = 5 << 20

var allowedProofExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// ValidateProof checks a proof-of-payment file name and size before upload.
func ValidateProof(filename string, size int64) error {
	ext := strings.ToLower(path.Ext(filename))
	if !allowedProofExtensions[ext] {
		return fmt.Errorf("unsupported proof file type %q, allowed: pdf, jpg, jpeg, png, gif", ext)
	}
	if size > MaxProofBytes {
		return fmt.Errorf("proof file exceeds the 5 MB limit")
	}
	if size <= 0 {
		return fmt.Errorf("proof file is empty")
	}
	return nil
}

// Uploader stores proof-of-payment files in Cloudinary.
type Uploader struct {
	cld *cloudinary.Cloudinary
}

func NewUploader(cloudName, apiKey, apiSecret string) (*Uploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %v", err)
	}
	return &Uploader{cld: cld}, nil
}

// UploadProof validates and uploads a proof file, returning its secure URL.
func (u *Uploader) UploadProof(ctx context.Context, file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := ValidateProof(header.Filename, header.Size); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: "payment_proofs",
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %v", err)
	}
	return resp.SecureURL, nil
}
