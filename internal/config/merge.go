package config

import "fmt"

// Merge combines two configs where overlay takes precedence over base.
//   - version: must agree if both declare it (non-zero); fatal error on mismatch
//   - scalar fields: a non-empty overlay value replaces the base value
//   - architectures: a non-empty overlay list replaces the base list
//
// Command-line flags are applied as the last overlay.
func Merge(base, overlay *Config) (*Config, error) {
	if base == nil {
		return overlay, nil
	}
	if overlay == nil {
		return base, nil
	}

	result := *base
	result.Channel.Architectures = append([]string(nil), base.Channel.Architectures...)

	if err := mergeVersion(base.Version, overlay.Version, &result.Version); err != nil {
		return nil, err
	}

	mergeString(&result.Channel.URL, overlay.Channel.URL)
	if len(overlay.Channel.Architectures) > 0 {
		result.Channel.Architectures = append([]string(nil), overlay.Channel.Architectures...)
	}

	mergeString(&result.Indexer.Type, overlay.Indexer.Type)
	mergeString(&result.Indexer.Python, overlay.Indexer.Python)
	mergeString(&result.Indexer.Title, overlay.Indexer.Title)

	mergeString(&result.Lock.Repo, overlay.Lock.Repo)
	mergeString(&result.Lock.Workflow, overlay.Lock.Workflow)
	mergeString(&result.Lock.Ref, overlay.Lock.Ref)
	mergeString(&result.Lock.APIURL, overlay.Lock.APIURL)
	if overlay.Lock.Timeout != 0 {
		result.Lock.Timeout = overlay.Lock.Timeout
	}

	mergeString(&result.Logging.Format, overlay.Logging.Format)
	mergeString(&result.Logging.Level, overlay.Logging.Level)

	mergeString(&result.Metrics.Textfile, overlay.Metrics.Textfile)

	return &result, nil
}

// MergeAll merges multiple configs in order (lowest precedence first).
// Returns an error if any version mismatch is found.
func MergeAll(configs []*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configs to merge")
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		var err error
		result, err = Merge(result, configs[i])
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func mergeVersion(base, overlay int, out *int) error {
	switch {
	case base == 0 && overlay == 0:
		*out = 0 // neither declares; validation will catch this
	case base == 0:
		*out = overlay
	case overlay == 0:
		*out = base
	case base == overlay:
		*out = base
	default:
		return fmt.Errorf("config version mismatch: one layer declares version %d, another declares version %d, all config layers must agree on version", base, overlay)
	}
	return nil
}

func mergeString(dst *string, overlay string) {
	if overlay != "" {
		*dst = overlay
	}
}
