package dispatch

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mahara/pieform/pkg/model"
)

var (
	// ErrNoSubmitHook is returned by Bind when a descriptor has neither a
	// registered submit hook nor a success callback.
	ErrNoSubmitHook = errors.New("dispatch: form has no submit hook")
	// ErrUnknownCallback is returned by Bind when a descriptor names a
	// success or validate callback that was never registered.
	ErrUnknownCallback = errors.New("dispatch: callback not registered")
)

// Catalog is the hook registration table. It is filled once at start-up and
// read concurrently by requests afterwards.
type Catalog struct {
	mu         sync.RWMutex
	forms      map[string]Hooks
	submitters map[string]SubmitFunc
	validators map[string]ValidateFunc
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		forms:      make(map[string]Hooks),
		submitters: make(map[string]SubmitFunc),
		validators: make(map[string]ValidateFunc),
	}
}

// Register attaches hooks to a form name. Duplicate names return an error.
func (c *Catalog) Register(form string, hooks Hooks) error {
	form = strings.TrimSpace(form)
	if form == "" {
		return fmt.Errorf("dispatch: form name is required")
	}
	if hooks.Submit == nil && hooks.Validate == nil && hooks.Cancel == nil {
		return fmt.Errorf("dispatch: form %q registered without hooks", form)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.forms[form]; exists {
		return fmt.Errorf("dispatch: form %q already registered", form)
	}
	c.forms[form] = hooks
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (c *Catalog) MustRegister(form string, hooks Hooks) {
	if err := c.Register(form, hooks); err != nil {
		panic(err)
	}
}

// RegisterCallback registers a submit function that descriptors reference
// through successcallback, scoped by plugin type and name. Empty plugin
// values register a core callback.
func (c *Catalog) RegisterCallback(pluginType, pluginName, name string, fn SubmitFunc) error {
	if fn == nil {
		return fmt.Errorf("dispatch: callback %q is nil", name)
	}
	key, err := callbackKey(pluginType, pluginName, name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.submitters[key]; exists {
		return fmt.Errorf("dispatch: callback %q already registered", key)
	}
	c.submitters[key] = fn
	return nil
}

// RegisterValidator registers a validate function that descriptors reference
// through validatecallback.
func (c *Catalog) RegisterValidator(pluginType, pluginName, name string, fn ValidateFunc) error {
	if fn == nil {
		return fmt.Errorf("dispatch: validator %q is nil", name)
	}
	key, err := callbackKey(pluginType, pluginName, name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.validators[key]; exists {
		return fmt.Errorf("dispatch: validator %q already registered", key)
	}
	c.validators[key] = fn
	return nil
}

// Has reports whether hooks are registered for the form name.
func (c *Catalog) Has(form string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.forms[form]
	return ok
}

// List returns the registered form names, sorted.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.forms))
	for name := range c.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bind resolves the descriptor's hooks and returns a fresh form ready for
// one request. Callbacks named by the descriptor take precedence over the
// hooks registered for its name.
func (c *Catalog) Bind(desc model.Descriptor) (*Form, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hooks := c.forms[desc.Name]

	if desc.SuccessCallback != "" {
		key, err := callbackKey(desc.PluginType, desc.PluginName, desc.SuccessCallback)
		if err != nil {
			return nil, err
		}
		fn, ok := c.submitters[key]
		if !ok {
			return nil, fmt.Errorf("%w: success callback %q for form %q", ErrUnknownCallback, key, desc.Name)
		}
		hooks.Submit = fn
	}
	if desc.ValidateCallback != "" {
		key, err := callbackKey(desc.PluginType, desc.PluginName, desc.ValidateCallback)
		if err != nil {
			return nil, err
		}
		fn, ok := c.validators[key]
		if !ok {
			return nil, fmt.Errorf("%w: validate callback %q for form %q", ErrUnknownCallback, key, desc.Name)
		}
		hooks.Validate = fn
	}

	if hooks.Submit == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSubmitHook, desc.Name)
	}
	return newForm(desc, hooks), nil
}

// MustBind panics when Bind fails.
func (c *Catalog) MustBind(desc model.Descriptor) *Form {
	form, err := c.Bind(desc)
	if err != nil {
		panic(err)
	}
	return form
}

func callbackKey(pluginType, pluginName, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("dispatch: callback name is required")
	}
	pluginType = strings.TrimSpace(pluginType)
	pluginName = strings.TrimSpace(pluginName)
	if (pluginType == "") != (pluginName == "") {
		return "", fmt.Errorf("dispatch: callback %q needs both plugin type and plugin name", name)
	}
	if pluginType == "" {
		return name, nil
	}
	return pluginType + "/" + pluginName + "/" + name, nil
}
