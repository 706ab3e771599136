// Package countdown считает оставшееся до конца события время и раз в тик
// сообщает его подписчику.
package countdown

import (
	"sync"
	"time"

	"github.com/magabrotheeeer/presale-service/internal/models"
)

// Breakdown оставшееся время, разложенное на дни, часы, минуты и секунды.
type Breakdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Total всего секунд.
func (b Breakdown) Total() int64 {
	return ((b.Days*24+b.Hours)*60+b.Minutes)*60 + b.Seconds
}

// IsZero время вышло.
func (b Breakdown) IsZero() bool {
	return b == Breakdown{}
}

// Compute раскладывает max(0, end-now) с точностью до миллисекунд.
func Compute(end, now time.Time) Breakdown {
	ms := end.Sub(now).Milliseconds()
	if ms <= 0 {
		return Breakdown{}
	}
	const (
		second = int64(1000)
		minute = 60 * second
		hour   = 60 * minute
		day    = 24 * hour
	)
	return Breakdown{
		Days:    ms / day,
		Hours:   ms % day / hour,
		Minutes: ms % hour / minute,
		Seconds: ms % minute / second,
	}
}

// Clock источник текущего времени.
type Clock func() time.Time

// Start запускает отсчёт до конца события. Первое значение отдаётся сразу,
// затем раз в tick. После нулевого значения отсчёт замирает.
// Для nil или неактивного события возвращает пустую функцию остановки.
func Start(event *models.PresaleEvent, tick time.Duration, clock Clock, onTick func(Breakdown)) (stop func()) {
	if event == nil || !event.IsActive {
		return func() {}
	}
	if clock == nil {
		clock = time.Now
	}
	if tick <= 0 {
		tick = time.Second
	}
	end := event.EndDate

	b := Compute(end, clock())
	onTick(b)
	if b.IsZero() {
		return func() {}
	}

	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				b := Compute(end, clock())
				select {
				case <-done:
					return
				default:
				}
				onTick(b)
				if b.IsZero() {
					return
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
