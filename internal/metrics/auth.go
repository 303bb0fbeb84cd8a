package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del flujo de autenticación. Viven en un paquete propio para que
// auth no dependa de la capa HTTP.

var (
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Intentos de autenticación por flujo y resultado",
	}, []string{"flow", "result"}) // flow: local|provider_callback|auth_token|gate

	ProviderExchangeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "auth_provider_exchange_duration_seconds",
		Help:    "Duración del intercambio de código con el proveedor",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"})

	UsersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "users_created_total",
		Help: "Usuarios creados por proveedor",
	}, []string{"auth_provider"})
)

// Register registra las métricas de auth en reg (o en el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthAttempts, ProviderExchangeDuration, UsersCreated} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// Outcome devuelve "ok" o "error" para la etiqueta result.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
