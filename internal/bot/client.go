package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

// startBooking opens the service picker. Doctor bookings have no owner and
// list every service.
func (b *Bot) startBooking(_ context.Context, chatID int64, msgID int, userID int64, cat model.ServiceCategory, byDoctor bool) {
	sess := b.sessions.Reset(userID)
	sess.Draft = booking.Draft{CreatedByDoctor: byDoctor}
	if !byDoctor {
		owner := userID
		sess.Draft.OwnerID = &owner
	}
	if !b.fsm.Transition(sess, booking.StateChooseService) {
		return
	}
	b.edit(chatID, msgID, booking.StatePrompts[booking.StateChooseService], servicesKeyboard(b.bookings.Catalog(), cat))
}

func (b *Bot) handleBookingCallback(ctx context.Context, chatID int64, msgID int, userID int64, prefix, arg string) {
	sess := b.sessions.Get(userID)
	if sess == nil {
		b.reply(chatID, "Сессия истекла, начните заново: /start")
		return
	}

	switch prefix {
	case "svc":
		b.onServiceSelected(ctx, chatID, msgID, sess, arg)
	case "cal":
		month, err := time.ParseInLocation("2006-01", arg, b.slots.Location())
		if err != nil || sess.GetState() != booking.StateChooseDate {
			return
		}
		b.showCalendar(ctx, chatID, msgID, sess, month)
	case "date":
		b.onDateSelected(ctx, chatID, msgID, sess, arg)
	case "time":
		b.onTimeSelected(ctx, chatID, sess, arg)
	case "known":
		b.onKnownContact(ctx, chatID, sess)
	case "book":
		b.onBookingAction(ctx, chatID, msgID, sess, arg)
	}
}

func (b *Bot) onServiceSelected(ctx context.Context, chatID int64, msgID int, sess *booking.Session, arg string) {
	catalog := b.bookings.Catalog()
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(catalog) {
		b.reply(chatID, "Услуга не найдена. Выберите из списка.")
		return
	}
	if !b.fsm.Transition(sess, booking.StateChooseDate) {
		b.reply(chatID, "Сценарий устарел, начните заново: /start")
		return
	}
	svc := catalog[idx]
	sess.Update(func(s *booking.Session) {
		s.Draft.Service = svc.Name
		s.Draft.Restricted = svc.Restricted
		s.Draft.DurationMinutes = catalog.Duration(svc.Name)
	})
	b.showCalendar(ctx, chatID, msgID, sess, b.slots.Now())
}

func (b *Bot) showCalendar(ctx context.Context, chatID int64, msgID int, sess *booking.Session, month time.Time) {
	today := b.slots.Day(b.slots.Now())
	last := b.slots.Day(today.Add(b.opts.MaxAdvance))
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, today.Location())
	thisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	if first.Before(thisMonth) {
		first = thisMonth
	}

	available := make(map[string]bool)
	for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
		if d.Before(today) || d.After(last) {
			continue
		}
		ok, err := b.slots.IsDateAvailableFor(ctx, d, sess.Draft.Restricted)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Time("date", d).Msg("date availability failed")
			continue
		}
		available[d.Format(dateLayout)] = ok
	}

	hasPrev := first.After(thisMonth)
	hasNext := !first.AddDate(0, 1, 0).After(last)
	kb := CalendarKeyboard(first, available, hasPrev, hasNext)

	text := fmt.Sprintf("🦷 *%s*\n\n%s", sess.Draft.Service, booking.StatePrompts[booking.StateChooseDate])
	if sess.Draft.Restricted {
		text += "\n\nБРТ проводится только по понедельникам."
	}
	b.edit(chatID, msgID, text, &kb)
}

func (b *Bot) onDateSelected(ctx context.Context, chatID int64, msgID int, sess *booking.Session, arg string) {
	if sess.GetState() != booking.StateChooseDate {
		return
	}
	day, err := time.ParseInLocation(dateLayout, arg, b.slots.Location())
	if err != nil {
		b.reply(chatID, "Некорректная дата")
		return
	}

	slots, err := b.freeSlots(ctx, day, sess.Draft.DurationMinutes, sess.Draft.Restricted)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Time("date", day).Msg("slot computation failed")
		b.reply(chatID, "❌ Не удалось загрузить свободное время. Попробуйте позже.")
		return
	}
	if len(slots) == 0 {
		b.reply(chatID, "😔 На эту дату нет свободного времени. Выберите другую дату.")
		b.showCalendar(ctx, chatID, 0, sess, day)
		return
	}

	if !b.fsm.Transition(sess, booking.StateChooseTime) {
		return
	}
	sess.Update(func(s *booking.Session) { s.Draft.Date = day })

	kb := TimeSlotsKeyboard(slots)
	text := fmt.Sprintf("📅 *%s*\n\n%s", notify.FormatDay(day), booking.StatePrompts[booking.StateChooseTime])
	b.edit(chatID, msgID, text, &kb)
}

// freeSlots drops starts that are already in the past.
func (b *Bot) freeSlots(ctx context.Context, day time.Time, duration int, restricted bool) ([]time.Time, error) {
	slots, err := b.slots.ComputeAvailableSlots(ctx, day, duration, restricted)
	if err != nil {
		return nil, err
	}
	now := b.slots.Now()
	out := slots[:0:0]
	for _, s := range slots {
		if s.After(now) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *Bot) onTimeSelected(ctx context.Context, chatID int64, sess *booking.Session, arg string) {
	if sess.GetState() != booking.StateChooseTime || len(arg) != 4 {
		return
	}
	start, err := booking.ParseTimeOn(sess.Draft.Date, arg[:2]+":"+arg[2:])
	if err != nil {
		b.reply(chatID, "Некорректное время")
		return
	}
	sess.Update(func(s *booking.Session) { s.Draft.Start = start })

	if !b.fsm.Transition(sess, booking.StateAskName) {
		return
	}

	rows := [][]tgbotapi.InlineKeyboardButton{cancelRow()}
	if !sess.Draft.CreatedByDoctor && sess.Draft.OwnerID != nil {
		if u, err := b.bookings.KnownUser(ctx, *sess.Draft.OwnerID); err == nil && u != nil && u.FullName != "" {
			label := fmt.Sprintf("👤 %s, %s", u.FullName, u.Phone)
			rows = append([][]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardRow(button(label, "known:use"))}, rows...)
		}
	}
	text := fmt.Sprintf("🕐 %s\n\n%s", notify.FormatDate(start), booking.StatePrompts[booking.StateAskName])
	b.sendMarkdown(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) onKnownContact(ctx context.Context, chatID int64, sess *booking.Session) {
	if sess.GetState() != booking.StateAskName || sess.Draft.OwnerID == nil {
		return
	}
	u, err := b.bookings.KnownUser(ctx, *sess.Draft.OwnerID)
	if err != nil || u == nil {
		b.sendMarkdown(chatID, booking.StatePrompts[booking.StateAskName], *markup(cancelRow()))
		return
	}
	sess.Update(func(s *booking.Session) {
		s.Draft.FullName = u.FullName
		s.Draft.Phone = u.Phone
	})
	if b.fsm.Transition(sess, booking.StateAskPhone) {
		b.prompt(chatID, sess, booking.StateAskComment, skipKeyboard("book:skip"))
	}
}

func (b *Bot) handleBookingInput(ctx context.Context, chatID int64, sess *booking.Session, text string) {
	switch sess.GetState() {
	case booking.StateAskName:
		name, err := booking.NormalizeFullName(text)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		sess.Update(func(s *booking.Session) { s.Draft.FullName = name })
		b.prompt(chatID, sess, booking.StateAskPhone, markup(cancelRow()))
	case booking.StateAskPhone:
		phone, err := booking.NormalizePhone(text)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		sess.Update(func(s *booking.Session) { s.Draft.Phone = phone })
		b.prompt(chatID, sess, booking.StateAskComment, skipKeyboard("book:skip"))
	case booking.StateAskComment:
		sess.Update(func(s *booking.Session) { s.Draft.Comment = text })
		b.showBookingConfirm(ctx, chatID, sess)
	}
}

func (b *Bot) showBookingConfirm(_ context.Context, chatID int64, sess *booking.Session) {
	d := sess.Draft
	if err := d.Validate(); err != nil {
		b.reply(chatID, booking.UserMessage(err))
		return
	}
	if !b.fsm.Transition(sess, booking.StateConfirm) {
		return
	}
	b.sendMarkdown(chatID, draftSummary(d), *confirmKeyboard("book:confirm", "book:back_time"))
}

func (b *Bot) onBookingAction(ctx context.Context, chatID int64, msgID int, sess *booking.Session, action string) {
	switch action {
	case "cancel":
		b.sessions.Reset(sess.UserID)
		b.edit(chatID, msgID, booking.StatePrompts[booking.StateCanceled], backToMainKeyboard())
	case "skip":
		if sess.GetState() == booking.StateAskComment {
			b.showBookingConfirm(ctx, chatID, sess)
		}
	case "back_service":
		if b.fsm.Transition(sess, booking.StateChooseService) {
			cat := model.ServiceCategory("")
			if !sess.Draft.CreatedByDoctor {
				if svc, ok := b.bookings.Catalog().Lookup(sess.Draft.Service); ok {
					cat = svc.Category
				}
			}
			b.edit(chatID, msgID, booking.StatePrompts[booking.StateChooseService], servicesKeyboard(b.bookings.Catalog(), cat))
		}
	case "back_date":
		if b.fsm.Transition(sess, booking.StateChooseDate) {
			b.showCalendar(ctx, chatID, msgID, sess, sess.Draft.Date)
		}
	case "back_time":
		if b.fsm.Transition(sess, booking.StateChooseTime) {
			b.showTimes(ctx, chatID, sess)
		}
	case "confirm":
		b.confirmBooking(ctx, chatID, msgID, sess)
	}
}

func (b *Bot) showTimes(ctx context.Context, chatID int64, sess *booking.Session) {
	slots, err := b.freeSlots(ctx, sess.Draft.Date, sess.Draft.DurationMinutes, sess.Draft.Restricted)
	if err != nil || len(slots) == 0 {
		if b.fsm.Transition(sess, booking.StateChooseDate) {
			b.showCalendar(ctx, chatID, 0, sess, sess.Draft.Date)
		}
		return
	}
	kb := TimeSlotsKeyboard(slots)
	b.sendMarkdown(chatID, booking.StatePrompts[booking.StateChooseTime], kb)
}

func (b *Bot) confirmBooking(ctx context.Context, chatID int64, msgID int, sess *booking.Session) {
	if sess.GetState() != booking.StateConfirm {
		b.reply(chatID, "Сценарий устарел, начните заново: /start")
		return
	}

	created, err := b.bookings.Create(ctx, sess.Draft)
	if err != nil {
		b.reply(chatID, booking.UserMessage(err))
		if errors.Is(err, schedule.ErrSlotUnavailable) && b.fsm.Transition(sess, booking.StateChooseTime) {
			b.showTimes(ctx, chatID, sess)
			return
		}
		if !errors.Is(err, schedule.ErrCapacityExceeded) {
			zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", sess.UserID).Msg("booking failed")
		}
		return
	}
	b.fsm.Transition(sess, booking.StateComplete)
	b.sessions.Reset(sess.UserID)

	if created.CreatedByDoctor {
		b.edit(chatID, msgID, "✅ *Запись создана*\n\n"+notify.BookingInfo(*created, true), adminBackKeyboard())
		return
	}
	// The confirmation itself arrives through the notifier.
	b.edit(chatID, msgID, "✅ Запись оформлена!", backToMainKeyboard())
}

func (b *Bot) showMyBookings(ctx context.Context, chatID, userID int64, msgID int) {
	list, err := b.bookings.MyBookings(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("my bookings failed")
		b.reply(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(list) == 0 {
		b.edit(chatID, msgID, "📋 У вас нет активных записей.", backToMainKeyboard())
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 *Ваши записи:*\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, bk := range list {
		sb.WriteString(notify.BookingInfo(bk, false))
		sb.WriteString("\n\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("❌ Отменить "+notify.FormatShort(bk.Start), fmt.Sprintf("my:ask:%d", bk.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад в меню", "menu:main")))
	b.edit(chatID, msgID, sb.String(), markup(rows...))
}

func (b *Bot) handleMyCallback(ctx context.Context, chatID int64, msgID int, userID int64, arg string) {
	action, idStr, _ := strings.Cut(arg, ":")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	switch action {
	case "ask":
		bk, err := b.bookings.Get(ctx, id)
		if err != nil || bk.OwnerID == nil || *bk.OwnerID != userID {
			b.reply(chatID, booking.UserMessage(booking.ErrNotFound))
			return
		}
		kb := markup(
			tgbotapi.NewInlineKeyboardRow(button("✅ Да, отменить", fmt.Sprintf("my:cancel:%d", id))),
			tgbotapi.NewInlineKeyboardRow(button("⬅️ Нет, назад", "menu:my")),
		)
		b.edit(chatID, msgID, "Отменить запись?\n\n"+notify.BookingInfo(*bk, false), kb)
	case "cancel":
		owner := userID
		_, err := b.bookings.Cancel(ctx, id, clientCancelReason, &owner)
		if err != nil && !errors.Is(err, booking.ErrNotActive) {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		b.edit(chatID, msgID, "✅ Запись отменена.", markup(
			tgbotapi.NewInlineKeyboardRow(button("📋 Мои записи", "menu:my")),
			tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад в меню", "menu:main")),
		))
	}
}

func (b *Bot) startOrder(_ context.Context, chatID, userID int64) {
	sess := b.sessions.Reset(userID)
	owner := userID
	sess.Order = booking.OrderDraft{OwnerID: &owner}
	b.prompt(chatID, sess, booking.StateOrderName, markup(cancelRow()))
}

func (b *Bot) handleOrderInput(_ context.Context, chatID int64, sess *booking.Session, text string) {
	switch sess.GetState() {
	case booking.StateOrderName:
		name, err := booking.NormalizeFullName(text)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		sess.Update(func(s *booking.Session) { s.Order.FullName = name })
		b.prompt(chatID, sess, booking.StateOrderPhone, markup(cancelRow()))
	case booking.StateOrderPhone:
		phone, err := booking.NormalizePhone(text)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		sess.Update(func(s *booking.Session) { s.Order.Phone = phone })
		b.prompt(chatID, sess, booking.StateOrderProducts, markup(cancelRow()))
	case booking.StateOrderProducts:
		if strings.TrimSpace(text) == "" {
			b.reply(chatID, booking.StatePrompts[booking.StateOrderProducts])
			return
		}
		sess.Update(func(s *booking.Session) { s.Order.Products = text })
		b.prompt(chatID, sess, booking.StateOrderComment, skipKeyboard("order:skip"))
	case booking.StateOrderComment:
		sess.Update(func(s *booking.Session) { s.Order.Comment = text })
		b.showOrderConfirm(chatID, sess)
	}
}

func (b *Bot) showOrderConfirm(chatID int64, sess *booking.Session) {
	if !b.fsm.Transition(sess, booking.StateOrderConfirm) {
		return
	}
	b.sendMarkdown(chatID, orderSummary(sess.Order), *confirmKeyboard("order:confirm", ""))
}

func (b *Bot) handleOrderCallback(ctx context.Context, chatID, userID int64, action string) {
	sess := b.sessions.Get(userID)
	if sess == nil {
		b.reply(chatID, "Сессия истекла, начните заново: /start")
		return
	}
	switch action {
	case "skip":
		if sess.GetState() == booking.StateOrderComment {
			b.showOrderConfirm(chatID, sess)
		}
	case "confirm":
		if sess.GetState() != booking.StateOrderConfirm {
			return
		}
		o, err := b.bookings.CreateOrder(ctx, sess.Order)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("order failed")
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		b.sessions.Reset(userID)
		b.sendMarkdown(chatID, fmt.Sprintf("✅ Заказ №%d принят! Врач свяжется с вами для уточнения деталей.", o.ID), *backToMainKeyboard())
	}
}
