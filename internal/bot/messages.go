package bot

import (
	"fmt"
	"strings"

	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
)

const welcomeText = "👋 *Добро пожаловать!*\n\n" +
	"Я бот для записи на приём к стоматологу.\n\n" +
	"Вы можете:\n" +
	"• 🦷 Записаться на стоматологические услуги\n" +
	"• 💊 Получить консультацию нутрициолога\n" +
	"• 🔬 Записаться на сеанс БРТ\n" +
	"• 📦 Заказать БАДы NSP\n\n" +
	"Выберите направление:"

const helpText = "Команды:\n" +
	"/start — главное меню\n" +
	"/my — мои записи\n" +
	"/cancel — прервать текущее действие\n" +
	"/admin — панель врача"

const (
	clientCancelReason = "Отменено клиентом"
	doctorCancelReason = "Отменено врачом"
)

func (b *Bot) contactsText() string {
	c := b.opts.Clinic
	var sb strings.Builder
	sb.WriteString("📋 *Контактная информация*\n\n")
	line := func(icon, title, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s *%s* %s\n", icon, title, value)
		}
	}
	line("👩‍⚕️", "Врач:", c.Doctor)
	line("💼", "Специализация:", c.Specialization)
	line("📞", "Телефон:", c.Phone)
	line("📧", "Email:", c.Email)
	line("📍", "Адрес:", c.Address)
	sb.WriteString("\n✨ _Ваша улыбка — моя работа_")
	return sb.String()
}

func draftSummary(d booking.Draft) string {
	var sb strings.Builder
	sb.WriteString("📋 *Проверьте данные записи:*\n\n")
	fmt.Fprintf(&sb, "🦷 *Услуга:* %s\n", d.Service)
	fmt.Fprintf(&sb, "📅 *Дата и время:* %s\n", notify.FormatDate(d.Start))
	fmt.Fprintf(&sb, "⏱ *Продолжительность:* %s\n", notify.FormatDuration(d.DurationMinutes))
	fmt.Fprintf(&sb, "👤 *ФИО:* %s\n", d.FullName)
	fmt.Fprintf(&sb, "📞 *Телефон:* %s\n", d.Phone)
	if d.Comment != "" {
		fmt.Fprintf(&sb, "📝 *Комментарий:* %s\n", d.Comment)
	}
	return sb.String()
}

func orderSummary(d booking.OrderDraft) string {
	return "Проверьте заказ:\n\n" + notify.OrderInfo(model.Order{
		FullName: d.FullName,
		Phone:    d.Phone,
		Products: d.Products,
		Comment:  d.Comment,
	})
}

func bookingLine(b model.Booking) string {
	return fmt.Sprintf("%s — %s", notify.FormatShort(b.Start), b.Service)
}
