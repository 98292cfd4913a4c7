package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "receiptwise_go_backend/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// UserIDKey is the gin context key under which the middleware stores the
// authenticated user's stable identifier.
const UserIDKey = "userID"

// TokenVerifier validates a bearer credential and yields a stable user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// FailureRecorder receives a best-effort log entry for rejected requests.
type FailureRecorder interface {
	LogError(ctx context.Context, userID, endpoint, message string, elapsed time.Duration)
}

// Middleware authenticates the request via the verifier and aborts with a
// 401 before any downstream stage runs when the credential is missing or
// invalid. Rejections are logged under the "anonymous" user.
func Middleware(verifier TokenVerifier, recorder FailureRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, recorder, start,
				apperrors.New401Error(apperrors.CodeAuthRequired, "Authorization header is required"))
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
			abortUnauthorized(c, recorder, start,
				apperrors.New401Error(apperrors.CodeAuthInvalid, "Invalid authorization header"))
			return
		}

		userID, err := verifier.VerifyToken(bearerToken[1])
		if err != nil {
			abortUnauthorized(c, recorder, start,
				apperrors.New401Error(apperrors.CodeAuthInvalid, "Invalid or expired token"))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id stored by Middleware.
func UserID(c *gin.Context) string {
	uid, _ := c.Get(UserIDKey)
	s, _ := uid.(string)
	return s
}

func abortUnauthorized(c *gin.Context, recorder FailureRecorder, start time.Time, err *apperrors.CustomError) {
	if recorder != nil {
		recorder.LogError(c.Request.Context(), "anonymous", c.FullPath(), err.Message, time.Since(start))
	}
	apperrors.HandleError(c, err)
	c.Abort()
}

// JWKSVerifier validates RS256 tokens against the identity provider's
// published JWKS endpoint.
type JWKSVerifier struct {
	domain     string
	httpClient *http.Client
}

// NewJWKSVerifier creates a verifier for the given identity provider domain.
func NewJWKSVerifier(domain string) *JWKSVerifier {
	return &JWKSVerifier{
		domain:     domain,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// VerifyToken parses and verifies the token, returning the subject claim.
func (v *JWKSVerifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		cert, err := v.getPemCert(token)
		if err != nil {
			return nil, err
		}

		return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
	})

	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", errors.New("token has no subject claim")
	}

	return sub, nil
}

func (v *JWKSVerifier) getPemCert(token *jwt.Token) (string, error) {
	cert := ""
	resp, err := v.httpClient.Get(fmt.Sprintf("https://%s/.well-known/jwks.json", v.domain))
	if err != nil {
		return cert, err
	}
	defer resp.Body.Close()

	var jwks = struct {
		Keys []struct {
			Kty string   `json:"kty"`
			Kid string   `json:"kid"`
			Use string   `json:"use"`
			N   string   `json:"n"`
			E   string   `json:"e"`
			X5c []string `json:"x5c"`
		} `json:"keys"`
	}{}

	err = json.NewDecoder(resp.Body).Decode(&jwks)
	if err != nil {
		return cert, err
	}

	for k := range jwks.Keys {
		if token.Header["kid"] == jwks.Keys[k].Kid {
			cert = "-----BEGIN CERTIFICATE-----\n" + jwks.Keys[k].X5c[0] + "\n-----END CERTIFICATE-----"
		}
	}

	if cert == "" {
		return cert, errors.New("unable to find appropriate key")
	}

	return cert, nil
}
