package domain

// TokenKind es el "token_type" que ve el cliente.
type TokenKind string

const (
	TokenKindBearer TokenKind = "bearer"
	TokenKindState  TokenKind = "state"
)

// CSRFToken es el state opaco del login con proveedores. En cache: code -> "1".
type CSRFToken struct {
	Code string
	Kind TokenKind
}

// AuthToken es un JWT con solo "exp", canjeable una única vez.
// En cache: code -> user_id.
type AuthToken struct {
	Code string
	Kind TokenKind
}

// AccessToken es un JWT con "sub" y "exp". No tiene estado en el servidor.
type AccessToken struct {
	Code string
	Kind TokenKind
}

// TokenPayload son las claims que el gate expone a los handlers.
// Sub vacío significa ausente.
type TokenPayload struct {
	Sub string
}
