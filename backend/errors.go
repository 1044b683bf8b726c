// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a save loses an optimistic-concurrency
	// race, i.e. the stored version no longer matches the caller's.
	ErrConflict = errors.New("version conflict")

	// ErrNotLeader is returned when a write lands on a follower node.
	ErrNotLeader = errors.New("not the leader")

	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Validation error codes.
const (
	CodeIncompleteAdvancement = "incomplete_advancement"
	CodeBaseConflict          = "base_conflict"
	CodeInvalidOutCount       = "invalid_out_count"
	CodeUnknownResult         = "unknown_result"
	CodeUnknownDecision       = "unknown_decision"
)

// State error codes.
const (
	CodeWrongGameStatus  = "wrong_game_status"
	CodeBatterMismatch   = "batter_mismatch"
	CodeIncompleteLineup = "incomplete_lineup"
)

// ValidationError reports a rejected at-bat input. The game state is
// unchanged when one is returned.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Code, e.Message)
}

func newValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// StateError reports an operation attempted in a state that does not
// permit it, e.g. recording an at-bat on a suspended game.
type StateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state: %s: %s", e.Code, e.Message)
}

func newStateError(code, format string, args ...any) *StateError {
	return &StateError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a storage failure so that handlers can tell it
// apart from domain rejections.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
