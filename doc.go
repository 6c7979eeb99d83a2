// Package rpmextract reconciles a destination directory on disk with the
// extracted contents of an RPM archive.
//
// The entry point is [Reconcile], which inspects the destination, decides
// whether an extraction is needed (absent destination, or an existing one
// with a forced re-extraction requested), performs it, and reports whether
// anything changed. Running the same request twice converges: the second run
// is a no-op. A dry-run mode predicts the change flag without touching the
// filesystem.
//
// Extraction itself is behind the [Unpacker] interface. The default
// [NativeUnpacker] reads the RPM envelope and its compressed cpio payload in
// process; [PipelineUnpacker] shells out to the classic rpm2cpio | cpio
// pipeline instead. Both write the archive's file tree into the destination
// directory.
//
// Configuration is done using [Config] in an option pattern style, covering
// the logger, the telemetry hook, extraction limits and the unpacker backend.
// Telemetry about a finished extraction is captured in [TelemetryData].
package rpmextract
