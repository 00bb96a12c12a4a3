package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Contract is one compiled contract from solc's combined JSON output.
type Contract struct {
	Name string `json:"contractName"`
	// Source is the source unit the contract was declared in, as given to solc.
	Source        string            `json:"sourceName"`
	Code          string            `json:"bytecode"`
	RuntimeCode   string            `json:"deployedBytecode"`
	SrcMap        string            `json:"srcMap,omitempty"`
	SrcMapRuntime string            `json:"srcMapRuntime,omitempty"`
	ABI           any               `json:"abi"`
	UserDoc       any               `json:"userdoc,omitempty"`
	DevDoc        any               `json:"devdoc,omitempty"`
	Metadata      string            `json:"metadata,omitempty"`
	Hashes        map[string]string `json:"methodIdentifiers,omitempty"`
}

// combinedOutput is what solc before 0.8 prints: abi, userdoc and devdoc are
// JSON documents embedded as strings.
type combinedOutput struct {
	Contracts map[string]struct {
		BinRuntime                                  string `json:"bin-runtime"`
		SrcMapRuntime                               string `json:"srcmap-runtime"`
		Bin, SrcMap, Abi, Devdoc, Userdoc, Metadata string
		Hashes                                      map[string]string
	}
	Version string
}

// combinedOutputV8 is the 0.8+ form where those fields are plain JSON.
type combinedOutputV8 struct {
	Contracts map[string]struct {
		BinRuntime            string `json:"bin-runtime"`
		SrcMapRuntime         string `json:"srcmap-runtime"`
		Bin, SrcMap, Metadata string
		Abi                   any
		Devdoc                any
		Userdoc               any
		Hashes                map[string]string
	}
	Version string
}

// ParseCombinedJSON decodes the output of `solc --combined-json` and returns
// the contracts keyed by "source:Name" along with the compiler version solc
// reported.
func ParseCombinedJSON(data []byte) (map[string]*Contract, string, error) {
	var output combinedOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return parseCombinedJSONV8(data)
	}

	contracts := make(map[string]*Contract, len(output.Contracts))
	for key, info := range output.Contracts {
		var abi, userdoc, devdoc any
		if err := unmarshalEmbedded(info.Abi, &abi); err != nil {
			return nil, "", fmt.Errorf("solc: reading abi of %s: %w", key, err)
		}
		if err := unmarshalEmbedded(info.Userdoc, &userdoc); err != nil {
			return nil, "", fmt.Errorf("solc: reading userdoc of %s: %w", key, err)
		}
		if err := unmarshalEmbedded(info.Devdoc, &devdoc); err != nil {
			return nil, "", fmt.Errorf("solc: reading devdoc of %s: %w", key, err)
		}

		source, name := splitKey(key)
		contracts[key] = &Contract{
			Name:          name,
			Source:        source,
			Code:          "0x" + info.Bin,
			RuntimeCode:   "0x" + info.BinRuntime,
			SrcMap:        info.SrcMap,
			SrcMapRuntime: info.SrcMapRuntime,
			ABI:           abi,
			UserDoc:       userdoc,
			DevDoc:        devdoc,
			Metadata:      info.Metadata,
			Hashes:        info.Hashes,
		}
	}
	return contracts, output.Version, nil
}

func parseCombinedJSONV8(data []byte) (map[string]*Contract, string, error) {
	var output combinedOutputV8
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, "", fmt.Errorf("solc: parsing combined JSON: %w", err)
	}

	contracts := make(map[string]*Contract, len(output.Contracts))
	for key, info := range output.Contracts {
		source, name := splitKey(key)
		contracts[key] = &Contract{
			Name:          name,
			Source:        source,
			Code:          "0x" + info.Bin,
			RuntimeCode:   "0x" + info.BinRuntime,
			SrcMap:        info.SrcMap,
			SrcMapRuntime: info.SrcMapRuntime,
			ABI:           info.Abi,
			UserDoc:       info.Userdoc,
			DevDoc:        info.Devdoc,
			Metadata:      info.Metadata,
			Hashes:        info.Hashes,
		}
	}
	return contracts, output.Version, nil
}

func unmarshalEmbedded(s string, v *any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

// splitKey splits "contracts/Token.sol:Token" at the last colon.
func splitKey(key string) (source, name string) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}
