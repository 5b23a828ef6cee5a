// Package sim provides a software 1-Wire bus adapter and device models that
// answer the memory command sets used by go-onewire.
//
// The models are byte-level: every byte the master shifts through
// Adapter.DataBlock, PutByte or GetByte is fed to the selected device, which
// answers with the byte it drives on the line. The line is wired-AND, so a
// byte the master writes with zero bits reads back with those bits cleared.
//
// Supported models:
//
//   - DS2431 (family 0x2D): 128-byte EEPROM, 8-byte scratchpad with address
//     echo and CRC16, page protection bytes, busy window after a copy.
//   - DS2430 (family 0x14): 32-byte EEPROM behind a plain scratchpad plus the
//     8-byte application register with copy-and-lock.
//   - DS2502 (family 0x09): 128-byte write-once EPROM programmed with a
//     program pulse, CRC8 protected reads and an 8-byte status memory holding
//     the page lock bitmap, redirection bytes and redirection lock bitmap.
//   - DS1977 (family 0x37): 32 KB NVRAM with a 64-byte CRC16 scratchpad and
//     read-only / read-write passwords.
//
// Power features are modelled as flags: copy commands only commit when the
// final byte was sent with the strong pull-up armed, and EPROM bytes are only
// programmed by Adapter.StartProgramPulse. Time is not modelled; dwell sleeps
// in the banks are real but the devices complete instantly.
//
// Fault injection (CorruptNext) flips bits of bytes read from the line so
// tests can exercise integrity and verification paths.
package sim
