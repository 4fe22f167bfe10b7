package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"

	"assistant-relay/internal/export"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: drive-auth-helper <credentials.json> <token.json>")
	}
	credentialsFile, tokenFile := os.Args[1], os.Args[2]

	config, err := export.DriveOAuthConfig(credentialsFile)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("🔗 Google Drive OAuth2 Authorization Helper\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("1. Open this URL in your browser:\n")
	fmt.Printf("   %s\n\n", authURL)
	fmt.Printf("2. Authorize the application\n")
	fmt.Printf("3. Copy the authorization code and enter it below\n\n")
	fmt.Printf("📝 Enter the authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		log.Fatalf("Failed to read authorization code: %v", err)
	}

	token, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Failed to exchange code for token: %v", err)
	}
	if token.RefreshToken == "" {
		log.Printf("⚠️ No refresh token returned; revoke the app's access and run again")
	}
	if err := export.SaveToken(tokenFile, token); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}

	fmt.Printf("\n✅ Token saved to %s\n", tokenFile)
	fmt.Printf("Set DRIVE_CREDENTIALS_FILE=%s and DRIVE_TOKEN_FILE=%s in your .env\n", credentialsFile, tokenFile)
}
