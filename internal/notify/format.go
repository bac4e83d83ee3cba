package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthsNominative = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdayNames = [...]string{
	"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота",
}

// FormatDate renders "15 января 2024, 14:30".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s, %s", FormatDay(t), t.Format("15:04"))
}

// FormatDay renders "15 января 2024".
func FormatDay(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), monthsGenitive[t.Month()-1], t.Year())
}

// FormatShort renders "15.01.2024 14:30".
func FormatShort(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// MonthTitle renders "Январь 2024".
func MonthTitle(t time.Time) string {
	return fmt.Sprintf("%s %d", monthsNominative[t.Month()-1], t.Year())
}

// WeekdayName returns the Russian name of a weekday.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// FormatDuration renders minutes as "1 ч 30 мин", "2 ч" or "30 мин".
func FormatDuration(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%d ч %d мин", h, m)
	case h > 0:
		return fmt.Sprintf("%d ч", h)
	}
	return fmt.Sprintf("%d мин", m)
}

// BookingInfo is the appointment card shown to clients and the doctor.
func BookingInfo(b model.Booking, withPhone bool) string {
	var sb strings.Builder
	sb.WriteString("📅 *Запись на приём*\n\n")
	fmt.Fprintf(&sb, "👤 *Клиент:* %s\n", b.FullName)
	if withPhone && b.Phone != "" {
		fmt.Fprintf(&sb, "📞 *Телефон:* %s\n", b.Phone)
	}
	fmt.Fprintf(&sb, "🕐 *Дата и время:* %s\n", FormatDate(b.Start))
	fmt.Fprintf(&sb, "🦷 *Тип услуги:* %s\n", b.Service)
	fmt.Fprintf(&sb, "⏱ *Продолжительность:* %s\n", FormatDuration(b.DurationMinutes))
	if b.Comment != "" {
		fmt.Fprintf(&sb, "\n📝 *Комментарий:*\n%s", b.Comment)
	}
	return sb.String()
}

// ConfirmationText is sent to the client after booking.
func ConfirmationText(b model.Booking) string {
	return "✅ Ваша запись успешно создана!\n\n" + BookingInfo(b, true)
}

// CancellationText is sent to the client when a booking is cancelled.
func CancellationText(b model.Booking, reason string) string {
	var sb strings.Builder
	sb.WriteString("❌ *Ваша запись отменена*\n\n")
	fmt.Fprintf(&sb, "📅 Дата: %s\n", FormatDate(b.Start))
	fmt.Fprintf(&sb, "🦷 Услуга: %s\n", b.Service)
	if reason != "" {
		fmt.Fprintf(&sb, "\nПричина: %s", reason)
	}
	return sb.String()
}

// ChangeText is sent to the client when a booking is moved.
func ChangeText(b model.Booking, previous *time.Time) string {
	var sb strings.Builder
	sb.WriteString("ℹ️ *Ваша запись изменена*\n\n")
	if previous != nil {
		fmt.Fprintf(&sb, "📅 Было: %s\n", FormatDate(*previous))
	}
	fmt.Fprintf(&sb, "📅 Теперь: %s\n", FormatDate(b.Start))
	fmt.Fprintf(&sb, "🦷 Услуга: %s", b.Service)
	return sb.String()
}

// ReminderText is sent the day before an appointment.
func ReminderText(b model.Booking) string {
	return fmt.Sprintf("ℹ️ Напоминание: у вас запись на завтра!\n\n"+
		"📅 Дата: %s\n"+
		"🦷 Услуга: %s\n"+
		"📞 Телефон для связи: %s", FormatDate(b.Start), b.Service, b.Phone)
}

// AdminNewBookingText alerts the doctor about a new booking.
func AdminNewBookingText(b model.Booking) string {
	return "🆕 *Новая запись!*\n\n" + BookingInfo(b, true)
}

// AdminCancelledText alerts the doctor about a cancellation.
func AdminCancelledText(b model.Booking, reason string) string {
	text := fmt.Sprintf("🚫 *Запись отменена*\n\n👤 %s\n🕐 %s\n🦷 %s", b.FullName, FormatDate(b.Start), b.Service)
	if reason != "" {
		text += "\n\nПричина: " + reason
	}
	return text
}

// OrderInfo is the supplement order card.
func OrderInfo(o model.Order) string {
	var sb strings.Builder
	sb.WriteString("💊 *Заказ БАДов NSP*\n\n")
	fmt.Fprintf(&sb, "👤 *Клиент:* %s\n", o.FullName)
	fmt.Fprintf(&sb, "📞 *Телефон:* %s\n", o.Phone)
	fmt.Fprintf(&sb, "📦 *Желаемые продукты:*\n%s\n", o.Products)
	if o.Comment != "" {
		fmt.Fprintf(&sb, "\n📝 *Комментарий:*\n%s", o.Comment)
	}
	return sb.String()
}

// AdminNewOrderText alerts the doctor about a supplement order.
func AdminNewOrderText(o model.Order) string {
	return fmt.Sprintf("🆕 *Новый заказ №%d*\n\n", o.ID) + OrderInfo(o)
}

// ScheduleText renders the weekly schedule, Monday first.
func ScheduleText(t model.WeeklyTemplate, restricted model.RestrictedMode) string {
	var sb strings.Builder
	sb.WriteString("🕐 *Расписание работы*\n\n")
	for i := 1; i <= 7; i++ {
		d := time.Weekday(i % 7)
		w, ok := t[d]
		switch {
		case ok:
			fmt.Fprintf(&sb, "• %s: %s\n", WeekdayName(d), w)
		case d == restricted.Weekday:
			fmt.Fprintf(&sb, "• %s: только БРТ (%s)\n", WeekdayName(d), restrictedStarts(restricted))
		default:
			fmt.Fprintf(&sb, "• %s: выходной\n", WeekdayName(d))
		}
	}
	return sb.String()
}

func restrictedStarts(r model.RestrictedMode) string {
	parts := make([]string, len(r.Starts))
	for i, s := range r.Starts {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}
