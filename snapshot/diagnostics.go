// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// DumpDiagnostics writes a gzip-compressed, human-readable summary of every
// region's size, filter-collection counts and checksum to w, for attaching
// to a support bundle. This is a diagnostic export only: this module never
// reads it back, and it is not a substitute for project persistence (out of
// scope; see spec §6).
func (s *Snapshot) DumpDiagnostics(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gz := gzip.NewWriter(w)
	fmt.Fprintf(gz, "regions: %d\n", len(s.regions))
	for _, r := range s.regions {
		fmt.Fprintf(gz, "region %#x size=%d checksum=%#x unchanged=%v collections=%d\n",
			r.BaseAddress, r.Size, r.checksum, r.unchanged, len(r.collections))
		for _, c := range r.collections {
			fmt.Fprintf(gz, "  type=%s alignment=%d filters=%d\n", c.DataType.ID, c.Alignment, c.Len())
		}
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "snapshot: close diagnostic gzip writer")
	}
	return nil
}
