// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель: упростить формирование структурированных полей лога,
// например, для передачи информации об ошибках.
package sl

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to resolve presale event", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Dec возвращает slog.Attr с десятичным значением в каноническом строковом виде.
func Dec(key string, d decimal.Decimal) slog.Attr {
	return slog.String(key, d.String())
}
