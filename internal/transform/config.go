package transform

import "fmt"

type Config struct {
	// FlattenedEnabled selects which of the two record representations is
	// processed: flattened when true, nested when false.
	FlattenedEnabled bool           `mapstructure:"flattened_enabled"`
	Flattened        CategoryConfig `mapstructure:"flattened"`
	Nested           CategoryConfig `mapstructure:"nested"`
}

type CategoryConfig struct {
	Token        string        `mapstructure:"token"`
	DropFields   []string      `mapstructure:"drop_fields"`
	RenameFields []FieldRename `mapstructure:"rename_fields"`
}

type FieldRename struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

func (c *Config) Validate() error {
	// both tokens empty disables classification entirely
	if c.Flattened.Token == "" && c.Nested.Token == "" {
		return nil
	}
	if c.Flattened.Token == "" || c.Nested.Token == "" {
		return fmt.Errorf("transform: flattened.token and nested.token must be set together")
	}
	if c.Flattened.Token == c.Nested.Token {
		return fmt.Errorf("transform: flattened.token and nested.token must differ")
	}
	for _, cc := range []CategoryConfig{c.Flattened, c.Nested} {
		for i, r := range cc.RenameFields {
			if r.From == "" || r.To == "" {
				return fmt.Errorf("transform: %s.rename_fields[%d] needs from and to", cc.Token, i)
			}
		}
	}
	return nil
}
