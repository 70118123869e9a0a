// Package access решает, может ли посетитель открыть ресурс с требуемым планом.
// Функции пакета не выполняют ввода-вывода.
package access

import "github.com/magabrotheeeer/content-subscriptions/internal/models"

// Decision итог проверки доступа.
type Decision int

const (
	// Allowed доступ открыт.
	Allowed Decision = iota
	// LoginRequired посетитель анонимен, нужен вход.
	LoginRequired
	// UpgradeRequired уровня плана недостаточно.
	UpgradeRequired
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case LoginRequired:
		return "login_required"
	case UpgradeRequired:
		return "upgrade_required"
	default:
		return "unknown"
	}
}

// CanAccess возвращает true, если sub может открыть ресурс с планом required.
//
// Ресурс без плана и ресурс с планом уровня 0 доступны всем, включая анонимов.
// Иначе нужен профиль с планом, уровень которого не ниже требуемого.
func CanAccess(sub *models.Subscriber, required *models.Plan) bool {
	if required == nil || required.Level == 0 {
		return true
	}
	if sub == nil || sub.Profile == nil || sub.Profile.CurrentPlan == nil {
		return false
	}
	return sub.Profile.CurrentPlan.Level >= required.Level
}

// Evaluate как CanAccess, но различает причины отказа.
func Evaluate(sub *models.Subscriber, required *models.Plan) Decision {
	if CanAccess(sub, required) {
		return Allowed
	}
	if sub == nil {
		return LoginRequired
	}
	return UpgradeRequired
}
