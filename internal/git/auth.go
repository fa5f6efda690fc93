package git

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/docsync/internal/config"
)

// authMethod creates a go-git authentication method from config.
func authMethod(auth *config.AuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case "none", "":
		return nil, nil // public repositories

	case "ssh":
		keyPath := auth.KeyPath
		if keyPath == "" {
			keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
		}
		publicKeys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key from %s: %w", keyPath, err)
		}
		return publicKeys, nil

	case "token":
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		// GitHub/GitLab accept "token" as the basic-auth username.
		return &http.BasicAuth{Username: "token", Password: auth.Token}, nil

	case "basic":
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &http.BasicAuth{Username: auth.Username, Password: auth.Password}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}
