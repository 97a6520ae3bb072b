package feedback

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
)

// ErrAttachmentsDisabled возвращается, если сервис собран без хранилища файлов.
var ErrAttachmentsDisabled = errors.New("attachments storage is not configured")

// Attach прикрепляет файл к заказу. Файлы доступны владельцу заказа и администраторам.
func (s *Service) Attach(login string, orderID int64, name string, content []byte) (domain.Attachment, error) {
	author, err := s.orderParticipant(login, orderID)
	if err != nil {
		return domain.Attachment{}, err
	}

	name, err = domain.NormalizeAttachmentName(name)
	if err != nil {
		return domain.Attachment{}, err
	}
	attachment := domain.Attachment{
		OrderID:    orderID,
		Name:       name,
		Content:    content,
		UploadedBy: author.Email,
		CreatedAt:  s.now().UTC(),
	}
	if errs := attachment.Validate(); len(errs) > 0 {
		return domain.Attachment{}, errors.Join(errs...)
	}

	saved, err := s.attachments.Create(attachment)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("save attachment: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"file":     saved.Name,
		"size":     saved.Size(),
	}).Info("file attached")
	s.appendTimeline(orderID, domain.TimelineFileAttached, fmt.Sprintf("file %s attached by %s", saved.Name, author.Email), saved.CreatedAt)
	return saved, nil
}

// RemoveAttachment удаляет все файлы заказа с именем name.
func (s *Service) RemoveAttachment(login string, orderID int64, name string) error {
	author, err := s.orderParticipant(login, orderID)
	if err != nil {
		return err
	}
	name, err = domain.NormalizeAttachmentName(name)
	if err != nil {
		return err
	}

	removed, err := s.attachments.DeleteByName(orderID, name)
	if err != nil {
		if errors.Is(err, domain.ErrAttachmentNotFound) {
			s.logger.WithFields(log.Fields{"order_id": orderID, "file": name}).Warn("file is absent")
		}
		return err
	}

	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"file":     name,
		"removed":  removed,
	}).Info("file removed")
	s.appendTimeline(orderID, domain.TimelineFileRemoved, fmt.Sprintf("file %s removed by %s", name, author.Email), s.now().UTC())
	return nil
}

// Attachments возвращает файлы заказа в порядке добавления.
func (s *Service) Attachments(login string, orderID int64) ([]domain.Attachment, error) {
	if _, err := s.orderParticipant(login, orderID); err != nil {
		return nil, err
	}
	return s.attachments.ListByOrder(orderID)
}

// Attachment возвращает файл заказа по id.
func (s *Service) Attachment(login string, orderID, id int64) (domain.Attachment, error) {
	if _, err := s.orderParticipant(login, orderID); err != nil {
		return domain.Attachment{}, err
	}
	return s.attachments.Get(orderID, id)
}

// orderParticipant находит пользователя и проверяет, что он владелец заказа или администратор.
func (s *Service) orderParticipant(login string, orderID int64) (domain.User, error) {
	if s.attachments == nil {
		return domain.User{}, ErrAttachmentsDisabled
	}
	user, err := s.users.GetByLogin(login)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve author: %w", err)
	}
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.User{}, err
	}
	if order.BuyerLogin != user.Email && !domain.HasAdminRole(user) {
		return domain.User{}, fmt.Errorf("%w: order %d belongs to another buyer", domain.ErrAccessDenied, orderID)
	}
	return user, nil
}
