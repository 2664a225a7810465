package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// deploymentAddresses covers both the core and the AVS deployment files;
// each file fills only its own half.
type deploymentAddresses struct {
	Delegation     string `json:"delegation"`
	AVSDirectory   string `json:"avsDirectory"`
	ServiceManager string `json:"pumpkitServiceManager"`
	StakeRegistry  string `json:"stakeRegistry"`
}

type deploymentFile struct {
	Addresses deploymentAddresses `json:"addresses"`
}

func readDeployment(path string) (deploymentAddresses, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return deploymentAddresses{}, fmt.Errorf("failed to read deployment file: %w", err)
	}
	var d deploymentFile
	if err := json.Unmarshal(raw, &d); err != nil {
		return deploymentAddresses{}, fmt.Errorf("failed to parse deployment file %s: %w", path, err)
	}
	return d.Addresses, nil
}
