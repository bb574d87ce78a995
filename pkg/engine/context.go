// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import "encoding/json"

// Context is a run's three-layer variable namespace. static holds
// deployment-level constants, profile holds subject data, runtime
// accumulates step outputs and per-step metadata as the run executes.
// Merge precedence on Flatten is runtime > profile > static.
type Context struct {
	Static  map[string]interface{} `json:"static"`
	Profile map[string]interface{} `json:"profile"`
	Runtime map[string]interface{} `json:"runtime"`
}

// NewContext builds the initial context for a new run: empty static and
// profile layers, runtime seeded with a copy of the caller's inputs.
func NewContext(inputs map[string]interface{}) *Context {
	runtime := make(map[string]interface{}, len(inputs))
	for k, v := range inputs {
		runtime[k] = v
	}
	return &Context{
		Static:  map[string]interface{}{},
		Profile: map[string]interface{}{},
		Runtime: runtime,
	}
}

// Flatten merges the three layers into a single namespace for the
// conditional executor and AI-generate variable resolution. Later layers
// override earlier ones on key conflict: runtime > profile > static.
func (c *Context) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Static)+len(c.Profile)+len(c.Runtime))
	for k, v := range c.Static {
		out[k] = v
	}
	for k, v := range c.Profile {
		out[k] = v
	}
	for k, v := range c.Runtime {
		out[k] = v
	}
	return out
}

// Lookup searches static, then profile, then runtime, first hit wins — the
// precedence variable resolution uses (spec.md §4.5), distinct from
// Flatten's override precedence used by the conditional executor's
// namespace merge.
func (c *Context) Lookup(name string) (interface{}, bool) {
	if v, ok := c.Static[name]; ok {
		return v, true
	}
	if v, ok := c.Profile[name]; ok {
		return v, true
	}
	if v, ok := c.Runtime[name]; ok {
		return v, true
	}
	return nil, false
}

// MarshalContext serializes c for persistence.
func MarshalContext(c *Context) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalContext reconstructs a Context from its persisted JSON form.
func UnmarshalContext(data []byte) (*Context, error) {
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Static == nil {
		c.Static = map[string]interface{}{}
	}
	if c.Profile == nil {
		c.Profile = map[string]interface{}{}
	}
	if c.Runtime == nil {
		c.Runtime = map[string]interface{}{}
	}
	return &c, nil
}
