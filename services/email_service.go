package services

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"

	"rentahome/config"
	"rentahome/models"
	"rentahome/realtime"
	"rentahome/utils"
)

// Mailer отправляет письма пользователям
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// EmailService предоставляет методы для отправки email
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService создает новый экземпляр EmailService
func NewEmailService(cfg *config.Config) *EmailService {
	dialer := gomail.NewDialer(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
	)

	return &EmailService{
		dialer: dialer,
		from:   cfg.SMTP.From,
	}
}

// SendEmail отправляет email
func (s *EmailService) SendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("ошибка отправки email: %v", err)
	}

	return nil
}

const emailDateLayout = "02.01.2006"

func reservationRequestedEmail(r *models.Reservation, p *models.Property) (string, string) {
	subject := "Новая заявка на бронирование"
	body := fmt.Sprintf(`
		<h2>Новая заявка на бронирование</h2>
		<p>Объект: %s</p>
		<p>Заявка: #%d</p>
		<p>Заезд: %s</p>
		<p>Выезд: %s</p>
		<p>Срок: %d мес.</p>
		<p>Итого: %s</p>
	`, html.EscapeString(p.Title), r.ID, r.ArrivalDate.Format(emailDateLayout), r.DepartureDate.Format(emailDateLayout),
		r.DurationMonths, r.TotalCost.StringFixed(2))

	return subject, body
}

func reservationDecidedEmail(r *models.Reservation, p *models.Property) (string, string) {
	subject := "Ваша заявка отклонена"
	verdict := "отклонена владельцем"
	if r.Status == models.ReservationAccepted {
		subject = "Ваша заявка принята"
		verdict = "принята владельцем. Первый платеж можно зарегистрировать за 2 дня до заезда"
	}
	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>Заявка #%d на объект «%s» %s.</p>
	`, subject, r.ID, html.EscapeString(p.Title), verdict)

	return subject, body
}

func paymentSubmittedEmail(payment *models.MonthlyPayment) (string, string) {
	subject := "Зарегистрирован платеж за аренду"
	body := fmt.Sprintf(`
		<h2>Зарегистрирован платеж</h2>
		<p>Заявка: #%d</p>
		<p>Месяц: %d</p>
		<p>Способ оплаты: %s</p>
		<p>Сумма: %s</p>
		<p>Платеж ожидает вашей проверки.</p>
	`, payment.ReservationID, payment.Month, payment.Method, payment.AmountPaid.StringFixed(2))

	return subject, body
}

func paymentDecidedEmail(payment *models.MonthlyPayment) (string, string) {
	if payment.Status == models.PaymentVerified {
		subject := "Платеж подтвержден"
		body := fmt.Sprintf(`
		<h2>Платеж подтвержден</h2>
		<p>Платеж за месяц %d по заявке #%d подтвержден владельцем.</p>
	`, payment.Month, payment.ReservationID)
		return subject, body
	}

	// причину пишет владелец, в HTML она попадает только экранированной
	reason := ""
	if payment.RejectionReason != nil {
		reason = html.EscapeString(*payment.RejectionReason)
	}
	subject := "Платеж отклонен"
	body := fmt.Sprintf(`
		<h2>Платеж отклонен</h2>
		<p>Платеж за месяц %d по заявке #%d отклонен.</p>
		<p>Причина: %s</p>
		<p>Зарегистрируйте платеж повторно.</p>
	`, payment.Month, payment.ReservationID, reason)

	return subject, body
}

func paymentOverdueEmail(r *models.Reservation, entry ScheduleEntry) (string, string) {
	subject := "Просрочен платеж за аренду"
	body := fmt.Sprintf(`
		<h2>Просрочен платеж</h2>
		<p>Заявка: #%d</p>
		<p>Месяц: %d</p>
		<p>Срок оплаты: %s</p>
		<p>Сумма: %s</p>
	`, r.ID, entry.Month, entry.DueDate.Format(emailDateLayout), entry.Amount.StringFixed(2))

	return subject, body
}

// notifier рассылает события в ленту изменений и письма. Ошибки доставки только логируются.
type notifier struct {
	store  Store
	mailer Mailer
	events realtime.Publisher
}

func (n notifier) publish(ctx context.Context, topic, eventType string, payload interface{}) {
	if n.events == nil {
		return
	}
	event := realtime.Event{Type: eventType, Topic: topic, Payload: payload}
	if err := n.events.Publish(ctx, event); err != nil {
		utils.LogError("Ошибка публикации события %s в %s: %v", eventType, topic, err)
	}
}

func (n notifier) email(ctx context.Context, userID uint, subject, body string) {
	if n.mailer == nil {
		return
	}
	user, err := n.store.GetUser(ctx, userID)
	if err != nil {
		utils.LogError("Ошибка при получении получателя письма %d: %v", userID, err)
		return
	}

	// gomail не принимает контекст: ждем отправку не дольше срока запроса
	sent := make(chan error, 1)
	go func() {
		sent <- n.mailer.SendEmail(user.Email, subject, body)
	}()
	select {
	case err := <-sent:
		if err != nil {
			utils.LogError("Ошибка при отправке уведомления: %v", err)
		}
	case <-ctx.Done():
		utils.LogError("Отправка письма %q пользователю %d не завершилась в срок: %v", subject, userID, ctx.Err())
	}
}
