package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// MaxAttachmentSize ограничивает размер файла, прикреплённого к заказу.
const MaxAttachmentSize = 1 << 20

// Attachment — файл, прикреплённый к заказу.
type Attachment struct {
	ID         int64
	OrderID    int64
	Name       string
	Content    []byte
	UploadedBy string
	CreatedAt  time.Time
}

// NormalizeAttachmentName оставляет от имени файла только базовую часть.
func NormalizeAttachmentName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return "", ErrAttachmentNameRequired
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return "", ErrAttachmentNameRequired
	}
	return base, nil
}

// Validate проверяет имя и размер файла.
func (a *Attachment) Validate() []error {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, ErrAttachmentNameRequired)
	}
	if len(a.Content) == 0 {
		errs = append(errs, ErrAttachmentEmpty)
	}
	if len(a.Content) > MaxAttachmentSize {
		errs = append(errs, fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, len(a.Content)))
	}
	return errs
}

// Size возвращает размер содержимого в байтах.
func (a Attachment) Size() int {
	return len(a.Content)
}

// Clone возвращает копию вложения со своим буфером содержимого.
func (a Attachment) Clone() Attachment {
	a.Content = append([]byte(nil), a.Content...)
	return a
}
