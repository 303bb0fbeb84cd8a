// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente.
//
//	┌─────────────────────────────────────────────────────┐
//	│        auth.Service / users.Service                 │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (UserRepository)           │
//	└─────────────────────────────────────────────────────┘
//	                 │                     │
//	                 ▼                     ▼
//	        ┌─────────────┐        ┌─────────────┐
//	        │  store/pg   │        │ store/memory│
//	        └─────────────┘        └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
package repository
