package terraform

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/stackpilot/stackpilot/internal/config"
)

const (
	// backendConfigFile is the generated partial backend configuration
	// passed to terraform init via -backend-config.
	backendConfigFile = "stackpilot.backend.hcl"
	// varFileName is the generated auto-loaded variable file for the
	// configured extra vars.
	varFileName = "stackpilot.auto.tfvars"
)

// WriteBackendConfig renders the S3 backend settings as a partial backend
// configuration file.
func WriteBackendConfig(path string, backend config.BackendConfig, region string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("bucket", cty.StringVal(backend.Bucket))
	body.SetAttributeValue("key", cty.StringVal(backend.StateKey))
	body.SetAttributeValue("region", cty.StringVal(region))
	body.SetAttributeValue("dynamodb_table", cty.StringVal(backend.LockTable))
	body.SetAttributeValue("encrypt", cty.BoolVal(true))

	if err := os.WriteFile(path, f.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write backend config %s: %w", path, err)
	}
	return nil
}

// WriteVarFile renders the extra variables as an auto-loaded tfvars file.
func WriteVarFile(path string, vars map[string]string) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	for _, k := range sortedKeys(vars) {
		body.SetAttributeValue(k, cty.StringVal(vars[k]))
	}

	if err := os.WriteFile(path, f.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write var file %s: %w", path, err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
