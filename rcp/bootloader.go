package rcp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

// Bootloader menu bytes the Gecko Bootloader's UART-XMODEM component
// expects on its single-character menu (§6 "BOOTLOADER-UPDATE").
const (
	btlMenuUpload byte = '1'
	btlMenuRun    byte = '2'
)

var bootloaderBanner = []byte("Gecko Bootloader")

// RequestBootloaderUpdate sends the CmdBootloaderUpdate command and
// returns without waiting for a reply: the RCP reboots into its
// bootloader and never answers this transaction on the normal HDLC
// channel, so the caller must stop using Transport and hand the same
// byte pipe to UpdateFirmware once the reboot banner is expected.
func (t *Transport) RequestBootloaderUpdate() error {
	return t.SendCommand(CmdBootloaderUpdate, nil, func(Message, error) {})
}

// UpdateFirmware drives the Gecko Bootloader's menu + XMODEM-CRC upload
// sequence over rw (the RCP's raw serial byte pipe, reopened after
// RequestBootloaderUpdate's reboot): it waits for the bootloader banner,
// selects the upload option, sends image as an XMODEM-CRC transfer, then
// selects the run option to hand control back to the application firmware
// (§6 "BOOTLOADER-UPDATE").
func UpdateFirmware(rw io.ReadWriter, image []byte, timeout time.Duration) error {
	if err := awaitBanner(rw, bootloaderBanner, timeout); err != nil {
		return fmt.Errorf("rcp: waiting for bootloader banner: %w", err)
	}
	if _, err := rw.Write([]byte{btlMenuUpload}); err != nil {
		return fmt.Errorf("rcp: selecting upload option: %w", err)
	}
	if err := xmodemSendCRC(rw, image, timeout); err != nil {
		return fmt.Errorf("rcp: xmodem transfer: %w", err)
	}
	if _, err := rw.Write([]byte{btlMenuRun}); err != nil {
		return fmt.Errorf("rcp: selecting run option: %w", err)
	}
	return nil
}

// awaitBanner reads from rw until banner appears in the accumulated
// stream or timeout elapses.
func awaitBanner(rw io.ReadWriter, banner []byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var buf bytes.Buffer
	chunk := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := rw.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if bytes.Contains(buf.Bytes(), banner) {
				return nil
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return errors.New("rcp: timed out waiting for bootloader banner")
}

const (
	xmodemSOH     = 0x01
	xmodemEOT     = 0x04
	xmodemACK     = 0x06
	xmodemNAK     = 0x15
	xmodemCAN     = 0x18
	xmodemBlkSize = 128
	xmodemMaxTx   = 10 // retries per block before giving up.
)

// xmodemSendCRC transfers data as a classic 128-byte-block XMODEM-CRC
// stream: it first waits for the receiver's 'C' (CRC mode request), then
// sends each block with a CRC-16/XMODEM trailer, retrying up to
// xmodemMaxTx times on NAK before failing.
func xmodemSendCRC(rw io.ReadWriter, data []byte, timeout time.Duration) error {
	if err := awaitByte(rw, 'C', timeout); err != nil {
		return fmt.Errorf("waiting for CRC handshake: %w", err)
	}

	blockNum := byte(1)
	for off := 0; off < len(data); off += xmodemBlkSize {
		end := off + xmodemBlkSize
		if end > len(data) {
			end = len(data)
		}
		block := make([]byte, xmodemBlkSize)
		copy(block, data[off:end])
		for i := end - off; i < xmodemBlkSize; i++ {
			block[i] = 0x1a // CP/M EOF padding, standard XMODEM filler.
		}
		if err := sendBlockWithRetry(rw, blockNum, block, timeout); err != nil {
			return err
		}
		blockNum++
	}

	return sendByteWithRetry(rw, xmodemEOT, timeout)
}

func sendBlockWithRetry(rw io.ReadWriter, blockNum byte, block []byte, timeout time.Duration) error {
	frame := make([]byte, 0, 3+len(block)+2)
	frame = append(frame, xmodemSOH, blockNum, ^blockNum)
	frame = append(frame, block...)
	crc := crc16XModem(block)
	frame = append(frame, byte(crc>>8), byte(crc))

	for attempt := 0; attempt < xmodemMaxTx; attempt++ {
		if _, err := rw.Write(frame); err != nil {
			return err
		}
		b, err := readByte(rw, timeout)
		if err != nil {
			return err
		}
		switch b {
		case xmodemACK:
			return nil
		case xmodemCAN:
			return errors.New("xmodem: transfer cancelled by receiver")
		case xmodemNAK:
			continue // retry this block.
		}
	}
	return errors.New("xmodem: block retry limit exceeded")
}

func sendByteWithRetry(rw io.ReadWriter, b byte, timeout time.Duration) error {
	for attempt := 0; attempt < xmodemMaxTx; attempt++ {
		if _, err := rw.Write([]byte{b}); err != nil {
			return err
		}
		got, err := readByte(rw, timeout)
		if err != nil {
			return err
		}
		if got == xmodemACK {
			return nil
		}
	}
	return errors.New("xmodem: EOT not acknowledged")
}

func awaitByte(rw io.ReadWriter, want byte, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		b, err := readByte(rw, timeout)
		if err != nil {
			return err
		}
		if b == want {
			return nil
		}
	}
	return errors.New("xmodem: timed out waiting for handshake byte")
}

func readByte(rw io.ReadWriter, timeout time.Duration) (byte, error) {
	var b [1]byte
	n, err := rw.Read(b[:])
	if n > 0 {
		return b[0], nil
	}
	if err != nil {
		return 0, err
	}
	return 0, errors.New("xmodem: short read")
}

// crc16XModem computes the CRC-16/XMODEM checksum (poly 0x1021, init 0)
// XMODEM-CRC mode uses as its per-block trailer.
func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
