// Package models содержит доменные структуры платформы: планы, профили подписчиков,
// платежи, пользователей и защищённый контент.
package models

// FreePlanName название бесплатного плана, создаваемого миграцией.
const FreePlanName = "Livre"

// Plan уровень доступа. Чем выше Level, тем больше контента открыто.
// Level 0 бесплатный план.
type Plan struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	ExternalPriceRef *string `json:"external_price_ref,omitempty"` // price_... или prod_... у провайдера
	Level            int     `json:"level"`
}

// IsFree сообщает, является ли план бесплатным.
func (p *Plan) IsFree() bool {
	return p != nil && p.Level == 0
}

// PriceRef возвращает ссылку на цену или пустую строку.
func (p *Plan) PriceRef() string {
	if p == nil || p.ExternalPriceRef == nil {
		return ""
	}
	return *p.ExternalPriceRef
}
