package domain

import "strconv"

// Шаблоны и темы писем, которые формирует ядро.
const (
	OrderDetailsSubject  = "Order details"
	OrderDetailsTemplate = "orderDetails.html"
	FeedbackSubject      = "Feedback was provided"
	FeedbackTemplate     = "orderFeedback.html"

	orderHeader = "Your"
	orderFooter = "Thanks for your choice"
	adminsLogin = "Admins"
)

// Notification — структурированная модель письма. Рендеринг и доставка
// выполняются внешним сервисом.
type Notification struct {
	ID        string
	Recipient string
	Subject   string
	Template  string
	Model     map[string]string
}

// OrderDetailsNotification собирает письмо о новом заказе. Покупателю приходит
// персональное обращение, администраторам — общее без шапки и подписи.
func OrderDetailsNotification(order Order, recipient User) Notification {
	login, header, footer := order.BuyerName, orderHeader, orderFooter
	if HasAdminRole(recipient) {
		login, header, footer = adminsLogin, "", ""
	}

	return Notification{
		Recipient: recipient.Email,
		Subject:   OrderDetailsSubject,
		Template:  OrderDetailsTemplate,
		Model: map[string]string{
			"orderId": strconv.FormatInt(order.ID, 10),
			"login":   login,
			"order":   order.Description,
			"total":   FormatPrice(order.TotalPrice),
			"header":  header,
			"footer":  footer,
		},
	}
}

// FeedbackNotification собирает письмо администратору об отзыве покупателя.
func FeedbackNotification(feedback Feedback, author User, recipient User) Notification {
	return Notification{
		Recipient: recipient.Email,
		Subject:   FeedbackSubject,
		Template:  FeedbackTemplate,
		Model: map[string]string{
			"orderId":         strconv.FormatInt(feedback.OrderID, 10),
			"login":           author.Name,
			"feedbackRate":    strconv.Itoa(feedback.Rate),
			"feedbackComment": feedback.Text,
		},
	}
}

// Notifier передаёт письмо внешнему сервису рассылки.
type Notifier interface {
	Notify(notification Notification) error
}
