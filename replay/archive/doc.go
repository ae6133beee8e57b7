// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package archive stores decoded replays on disk.
//
// An archive is a directory holding two files:
//
//   - metadata.json describes the replay and holds its header.
//   - frames.protostream holds one length-prefixed protobuf BytesValue per
//     decoded frame, optionally compressed. Each holds the frame's JSON
//     document, so field order and 64-bit integers survive intact.
//
// Archives are built in a staging directory and moved into place once
// complete, so a reader never observes a partial archive.
package archive
