// Copyright 2025 Kadir Pekel
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

package ratelimit

// Checker renders a verdict for one request. *Limiter implements it.
//
// Implementations must be thread-safe and support concurrent access.
type Checker interface {
	// Check decides whether the request may proceed and counts it if so.
	Check(identifier string) (*Result, error)

	// Peek reports the current quota without counting.
	Peek(identifier string) (*Result, error)
}

// Recorder observes limiter activity, typically to export metrics.
//
// Implementations must be thread-safe and must not block.
type Recorder interface {
	// RecordDecision is called once per Check with its result.
	RecordDecision(result *Result)

	// RecordSweep is called after every sweep pass with the number of records removed.
	RecordSweep(removed int)
}

type noopRecorder struct{}

func (noopRecorder) RecordDecision(*Result) {}
func (noopRecorder) RecordSweep(int)        {}

// Ensure interface compliance at compile time.
var (
	_ Checker  = (*Limiter)(nil)
	_ Recorder = noopRecorder{}
)
