package testutil

import "errors"

// ErrSimulated: ошибка-заглушка для проверки путей обработки ошибок.
var ErrSimulated = errors.New("simulated error for testing")
