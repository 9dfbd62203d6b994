package models

import "errors"

// Ошибки уровня хранилища, общие для gorm и in-memory реализаций
var (
	ErrNotFound   = errors.New("запись не найдена")
	ErrStaleState = errors.New("запись уже изменена другим запросом")
	ErrDuplicate  = errors.New("нарушено условие уникальности")
)
