package services

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

// Events published by the storefront.
const (
	EventOrderCreated   = "order.created"
	EventOrderShipped   = "order.shipped"
	EventOrderDelivered = "order.delivered"
	EventOrderCancelled = "order.cancelled"
	EventDishNew        = "dish.new"
)

var builtinTemplates = map[string]models.Template{
	EventOrderCreated: {
		Event: EventOrderCreated,
		Title: "Pedido recibido",
		Body:  "Tu pedido #{{order_id}} fue recibido y se está preparando",
	},
	EventOrderShipped: {
		Event: EventOrderShipped,
		Title: "Order Shipped",
		Body:  "Your order #{{order_id}} is on the way",
	},
	EventOrderDelivered: {
		Event: EventOrderDelivered,
		Title: "Pedido entregado",
		Body:  "Tu pedido #{{order_id}} fue entregado. ¡Buen provecho!",
	},
	EventOrderCancelled: {
		Event: EventOrderCancelled,
		Title: "Pedido cancelado",
		Body:  "Tu pedido #{{order_id}} fue cancelado",
	},
	EventDishNew: {
		Event: EventDishNew,
		Title: "Nuevo en Alien Food",
		Body:  "Prueba {{dish_name}} en la categoría {{category}}",
	},
}

// LookupTemplate returns the built-in template for event.
func LookupTemplate(event string) (models.Template, bool) {
	tpl, ok := builtinTemplates[event]
	return tpl, ok
}

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} placeholders; unknown keys are left as-is.
func RenderTemplate(template string, variables map[string]interface{}) string {
	if template == "" || len(variables) == 0 {
		return template
	}
	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderRegex.FindStringSubmatch(match)[1]
		if value, ok := variables[key]; ok {
			return formatValue(value)
		}
		return match
	})
}

// formatValue prints JSON numbers without exponents so order ids stay intact.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(value)
	}
}
