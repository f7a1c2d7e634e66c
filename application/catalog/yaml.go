package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"ui_verification/domain/entities"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of an additional scenario file.
//
//	scenarios:
//	  - name: cards-tab
//	    login: true
//	    steps:
//	      - kind: wait_visible
//	        target: {strategy: role, role: heading, value: Карточки}
//	        timeout: 15s
//
// ${BASE_URL}, ${SALT}, ${ADMIN_EMAIL}, ${ADMIN_PASSWORD}, ${AVATAR_PATH} and
// ${ARTIFACT_DIR} are replaced with fixture values before decoding. Any other
// "$" is kept as written.
type File struct {
	Scenarios []FileScenario `yaml:"scenarios"`
}

// FileScenario is a scenario plus file-only options
type FileScenario struct {
	entities.Scenario `yaml:",inline"`
	// Login prepends the admin sign-in to the setup phase
	Login bool `yaml:"login,omitempty"`
}

// LoadFile reads and validates scenarios from a YAML file
func LoadFile(path string, f Fixtures) ([]entities.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenarios, err := Parse(data, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Parse decodes scenarios strictly; unknown fields are errors
func Parse(data []byte, f Fixtures) ([]entities.Scenario, error) {
	expanded := placeholder.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(f.lookup(string(m[2 : len(m)-1])))
	})

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("scenario file is empty")
		}
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario file declares no scenarios")
	}

	scenarios := make([]entities.Scenario, 0, len(file.Scenarios))
	for _, fs := range file.Scenarios {
		s := fs.Scenario
		if fs.Login {
			s.Setup = append(LoginSetup(f), s.Setup...)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

var placeholder = regexp.MustCompile(`\$\{(BASE_URL|SALT|ADMIN_EMAIL|ADMIN_PASSWORD|AVATAR_PATH|ARTIFACT_DIR)\}`)

func (f Fixtures) lookup(key string) string {
	switch key {
	case "BASE_URL":
		return f.BaseURL
	case "SALT":
		return f.Salt
	case "ADMIN_EMAIL":
		return f.Email
	case "ADMIN_PASSWORD":
		return f.Password
	case "AVATAR_PATH":
		return f.AvatarPath
	case "ARTIFACT_DIR":
		return f.ArtifactDir
	}
	return ""
}
