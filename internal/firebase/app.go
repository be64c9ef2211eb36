package firebase

import (
	"context"
	"fmt"
	"os"

	fcm "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewApp initializes the Firebase app shared by Firestore and messaging.
// Without a credentials file it falls back to application default
// credentials, which is what runs on GCP.
func NewApp(ctx context.Context, projectID, credPath string) (*fcm.App, error) {
	var opts []option.ClientOption
	if credPath != "" {
		if _, err := os.Stat(credPath); err == nil {
			opts = append(opts, option.WithCredentialsFile(credPath))
		}
	}
	var cfg *fcm.Config
	if projectID != "" {
		cfg = &fcm.Config{ProjectID: projectID}
	}
	app, err := fcm.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app, nil
}
