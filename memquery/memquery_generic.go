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

// +build !linux

package memquery

import "context"

// UnsupportedPageSource is the stub backend selected on every platform
// without a native implementation. It exists so the rest of this module,
// and its tests, build everywhere; the only exercised backend in this
// module's own tests is memqueryfake's.
type UnsupportedPageSource struct{}

var _ PageSource = (*UnsupportedPageSource)(nil)

func (UnsupportedPageSource) EnumeratePages(ctx context.Context, proc Process, opts EnumerateOptions) ([]NormalizedRegion, error) {
	return nil, ErrUnsupportedPlatform
}

func (UnsupportedPageSource) ReadBytes(ctx context.Context, proc Process, address uint64, buf []byte) (int, error) {
	return 0, ErrUnsupportedPlatform
}
