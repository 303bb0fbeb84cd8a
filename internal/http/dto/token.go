package dto

// AccessTokenResponse es la respuesta de POST /login/access-token.
type AccessTokenResponse struct {
	Code        string `json:"code"`
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
}
