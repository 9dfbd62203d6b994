package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
	"github.com/google/uuid"
)

// ErrStorageDisabled возвращается, если хранилище не настроено
var ErrStorageDisabled = errors.New("хранилище чеков не настроено")

// ProofUploader сохраняет изображение чека и возвращает публичную ссылку на него
type ProofUploader interface {
	UploadProof(ctx context.Context, file io.Reader, reservationID uint) (string, error)
}

// Параметры оптимизации изображений чеков
const (
	proofEager = "q_auto,f_auto,w_1200,c_limit"
)

var eagerAsyncFalse = false

// CloudinaryUploader загружает чеки в Cloudinary
type CloudinaryUploader struct {
	uploader *uploader.API
	folder   string
}

// NewCloudinaryUploader создает загрузчик по имени облака, ключу и секрету
func NewCloudinaryUploader(cloudName, apiKey, apiSecret, folder string) (*CloudinaryUploader, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации Cloudinary: %w", err)
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания загрузчика Cloudinary: %w", err)
	}
	return &CloudinaryUploader{uploader: up, folder: folder}, nil
}

// UploadProof загружает изображение чека бронирования reservationID
func (c *CloudinaryUploader) UploadProof(ctx context.Context, file io.Reader, reservationID uint) (string, error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     ProofPublicID(reservationID),
		ResourceType: "image",
		Eager:        proofEager,
		EagerAsync:   &eagerAsyncFalse,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки чека: %w", err)
	}
	if result.SecureURL == "" {
		return "", errors.New("ошибка загрузки чека: пустая ссылка")
	}
	return result.SecureURL, nil
}

// ProofPublicID возвращает уникальный идентификатор файла чека
func ProofPublicID(reservationID uint) string {
	return fmt.Sprintf("reserva-%d-%s", reservationID, uuid.NewString())
}

// DisabledUploader используется, когда учетные данные хранилища не заданы
type DisabledUploader struct{}

func (DisabledUploader) UploadProof(context.Context, io.Reader, uint) (string, error) {
	return "", ErrStorageDisabled
}
