// README: Firebase Admin SDK initialisation and token verifiers.
package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseToken holds the verified token data used by downstream middleware.
type FirebaseToken struct {
	UID    string
	Claims map[string]interface{}
}

// TokenVerifier verifies a raw bearer token string and returns token data.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error)
}

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier creates a TokenVerifier using the Firebase Admin SDK.
// If credentialsFile is non-empty it is used as the service-account JSON path;
// otherwise application-default credentials are used. Staff accounts carry
// custom claims "user_id" (numeric workshop user id) and "role".
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseToken, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return &FirebaseToken{UID: token.UID, Claims: token.Claims}, nil
}

// devVerifier accepts tokens of the form "<user_id>:<role>". It is only
// wired when no Firebase project is configured.
type devVerifier struct{}

func NewDevVerifier() TokenVerifier {
	return devVerifier{}
}

func (devVerifier) VerifyIDToken(_ context.Context, idToken string) (*FirebaseToken, error) {
	uid, role, ok := strings.Cut(idToken, ":")
	if !ok || uid == "" || role == "" {
		return nil, errors.New("dev token must look like <user_id>:<role>")
	}
	return &FirebaseToken{
		UID:    uid,
		Claims: map[string]interface{}{"user_id": uid, "role": role},
	}, nil
}
