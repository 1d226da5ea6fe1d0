package lua

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

// LoadScripts runs each script file in order, stopping at the first failure.
func (b *Binding) LoadScripts(paths []string) error {
	for _, path := range paths {
		if err := b.DoFile(path); err != nil {
			return errors.Wrapf(err, "failed to run script %s", path)
		}
	}
	return nil
}

// InitScripts runs init.lua from every hookcorn config folder that has one.
// Script errors are reported to the binding output and do not stop the others.
func (b *Binding) InitScripts() int {
	ran := 0
	configDirs := configdir.New("hookcorn", "lua")
	for _, config := range configDirs.QueryFolders(configdir.All) {
		if data, err := config.ReadFile("init.lua"); err == nil {
			ran++
			if err := b.DoString(string(data)); err != nil {
				fmt.Fprintf(b, "error while reading %s/init.lua: %v\n", config.Path, err)
			}
		}
	}
	return ran
}
