// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit provides the request gate in front of the AI chat endpoints.
//
// Features:
//   - Two fixed windows per identifier: minute (burst) and day (quota)
//   - A request is allowed only when both windows have room
//   - Denied requests are never counted
//   - Results report the more restrictive window for client-facing headers
//   - Background sweep of expired records, owned by the limiter
//
// # Basic Usage
//
//	limiter, err := ratelimit.New(ratelimit.Config{
//	    RequestsPerMinute: 5,
//	    RequestsPerDay:    20,
//	})
//	if err != nil {
//	    return err
//	}
//	defer limiter.Close()
//
//	result, err := limiter.Check("203.0.113.7")
//	if !result.Success {
//	    // Answer 429 using result.Limit, result.Remaining and result.ResetAt
//	}
//
// # Configuration
//
//	rate_limit:
//	  requests_per_minute: 5
//	  requests_per_day: 20
//	  sweep_interval: 1m
//
// # Time Windows
//
//   - minute: 60 seconds
//   - day: 24 hours
//
// Windows are fixed, not sliding: the counter for a window starts with the first
// request after the previous window ended and resets entirely when it ends.
//
// State lives in process memory only. Restarting the process forgives every
// client, and separate processes do not share counters.
package ratelimit
