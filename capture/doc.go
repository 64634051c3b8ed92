// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

/*
Package capture implements the real-time RF capture pipeline for a
USB-attached RF acquisition device: a transfer worker that fills a ring
of disk buffers, a processing worker that demultiplexes an embedded audio
stream out of the RF samples and transcodes the scrubbed RF stream to
one of three on-disk packings, and a supervisor that owns the lifecycle
of both workers and the three output files.

The USB endpoint driver, the logger, and the GUI/CLI that starts and
stops a capture are external collaborators, supplied by the caller
through the Device, TransferWorker, and Logger interfaces.
*/
package capture
