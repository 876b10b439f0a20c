/*
Package frameid embeds machine-readable identifiers into raw video frames and
reads them back.

An Encoder stamps a QR symbol carrying Prefix+counter into the top-left corner
of every frame. A Scanner looks for symbols inside a configurable Region,
keeps the first payload that starts with its prefix filter and reports the
frame as Found or Dropped.

Both work on Frame values laid out per the Geometry negotiated with the host
pipeline, and both refuse frames until Configure has been called:

	enc := frameid.NewEncoder(frameid.EncoderConfig{Prefix: "f:"})
	if err := enc.Configure(frameid.Geometry{Width: 1280, Height: 720, Format: frameid.FormatRGBx}); err != nil {
		return err
	}
	id, err := enc.EncodeInto(frameid.Frame{Data: buf})

	sc := frameid.NewScanner(frameid.ScannerConfig{PrefixFilter: "f:"})
	_ = sc.Configure(geometry)
	outcome, payload, err := sc.Scan(frameid.Frame{Data: buf, ReadOnly: true})

Calling Configure again starts a new stream segment: the encoder counter
restarts at 0.

Errors are sentinel values (ErrNotConfigured, ErrBufferNotWritable, ...) and
are matched with errors.Is. Per-symbol decode failures are not errors: they
are logged and skipped.
*/
package frameid
