package gcode

import "strconv"

// Seen reports whether letter appears as a parameter name within the
// current command, positioning the buffer's internal read pointer for the
// next typed getter call on a match (spec.md §6).
func (b *Buffer) Seen(letter byte) bool { return b.seen(letter) }

// seen reports whether letter appears as a parameter name within the
// current command's span, skipping quoted strings and brace-expression
// bodies, and rejecting an 'E' that is part of a number's exponent rather
// than a genuine extruder-letter parameter (spec.md §4.4). On a match it
// leaves b.readPointer positioned just past the letter for the next typed
// getter call.
func (b *Buffer) seen(letter byte) bool {
	buf := b.lineBytes()
	letter = upper(letter)
	inQuotes := false
	braceDepth := 0
	for i := b.cmd.ParameterStart; i < b.cmd.CommandEnd; i++ {
		c := buf[i]
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if braceDepth == 0 && upper(c) == letter &&
			(letter != 'E' || i == b.cmd.ParameterStart || !isDigit(buf[i-1])) {
			b.readPointer = i + 1
			return true
		}
		if c == '{' {
			braceDepth++
		} else if c == '}' && braceDepth > 0 {
			braceDepth--
		}
	}
	b.readPointer = -1
	return false
}

// takePointer returns the read pointer left by the most recent seen call,
// resetting it to -1 and raising Internal if the caller didn't call seen
// (or seen returned false) first.
func (b *Buffer) takePointer() (int, error) {
	if b.readPointer <= 0 {
		return 0, newError(ErrInternal, b.cmd.ParameterStart)
	}
	p := b.readPointer
	b.readPointer = -1
	return p, nil
}

// resolveOperand evaluates one scalar operand at pos, honoring a `{expr}` in
// place of a literal, and returns the position just past what it consumed.
func (b *Buffer) resolveOperand(buf []byte, pos int) (ExpressionValue, int, error) {
	if pos < len(buf) && buf[pos] == '{' {
		return b.evalExpr(buf, pos)
	}
	return parseNumberLiteral(buf, pos)
}

// GetFValue returns the float value of the letter last matched by seen.
func (b *Buffer) GetFValue() (float32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return 0, err
	}
	v, _, err := b.resolveOperand(b.lineBytes(), pos)
	if err != nil {
		return 0, err
	}
	return coerceFloat(v, pos)
}

// GetIValue returns the signed integer value of the letter last matched by
// seen. Unlike GetUIValue, it gives a quoted "0xNN" operand no special
// meaning (original's ReadIValue has no hex handling, only ReadUIValue
// does; spec.md §4.4 scopes quoted-hex to the u32 getter).
func (b *Buffer) GetIValue() (int32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return 0, err
	}
	v, _, err := b.resolveOperand(b.lineBytes(), pos)
	if err != nil {
		return 0, err
	}
	return coerceInt(v, pos)
}

// GetUIValue returns the unsigned integer value of the letter last matched
// by seen, honoring a quoted "0xNN"-style hex prefix.
func (b *Buffer) GetUIValue() (uint32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return 0, err
	}
	buf := b.lineBytes()
	if n, nerr, handled := parseQuotedHex(buf, pos); handled {
		if n < 0 {
			return 0, newError(ErrValueMustBeNonNegative, pos)
		}
		return uint32(n), nerr
	}
	v, _, err := b.resolveOperand(buf, pos)
	if err != nil {
		return 0, err
	}
	return coerceUInt(v, pos)
}

// parseQuotedHex recognizes a quoted "0xNN", "0XNN", "xNN" or "XNN" operand
// starting at pos and parses it as hex, consuming the trailing quote.
// handled is false when the operand isn't in that shape, in which case the
// caller should fall back to normal numeric parse.
func parseQuotedHex(buf []byte, pos int) (int64, error, bool) {
	if pos >= len(buf) || buf[pos] != '"' {
		return 0, nil, false
	}
	s := pos + 1
	switch {
	case s+1 < len(buf) && (buf[s] == '0') && (buf[s+1] == 'x' || buf[s+1] == 'X'):
		s += 2
	case s < len(buf) && (buf[s] == 'x' || buf[s] == 'X'):
		s++
	default:
		return 0, nil, false
	}
	e := s
	for e < len(buf) && isHexDigit(buf[e]) {
		e++
	}
	if e == s || e >= len(buf) || buf[e] != '"' {
		return 0, newError(ErrExpectedNumericInt, pos), true
	}
	n, err := strconv.ParseInt(string(buf[s:e]), 16, 64)
	if err != nil {
		return 0, newError(ErrExpectedNumericInt, pos), true
	}
	return n, nil, true
}

// DriverId is a CAN-aware board.local driver reference (spec.md §4.4).
type DriverId struct {
	Board uint8
	Local uint8
}

// GetDriverId parses the operand of the letter last matched by seen as a
// driver id: "local" on non-CAN configurations, or "board.local" when
// CANExpansionEnabled.
func (b *Buffer) GetDriverId() (DriverId, error) {
	pos, err := b.takePointer()
	if err != nil {
		return DriverId{}, err
	}
	id, _, err := b.readDriverId(b.lineBytes(), pos)
	return id, err
}

// readDriverId is the scalar-parse core shared by GetDriverId and
// GetDriverIdArray; it returns the position just past what it consumed.
func (b *Buffer) readDriverId(buf []byte, pos int) (DriverId, int, error) {
	board, next, err := scanUintLiteral(buf, pos)
	if err != nil {
		return DriverId{}, next, err
	}
	if !b.cfg.CANExpansionEnabled {
		return DriverId{Local: uint8(board)}, next, nil
	}
	if next >= len(buf) || buf[next] != '.' {
		return DriverId{Board: 0, Local: uint8(board)}, next, nil
	}
	local, next2, err := scanUintLiteral(buf, next+1)
	if err != nil {
		return DriverId{}, next2, err
	}
	return DriverId{Board: uint8(board), Local: uint8(local)}, next2, nil
}

// scanUintLiteral parses a run of decimal digits starting at pos, returning
// the parsed value and the position just past the last digit consumed.
func scanUintLiteral(buf []byte, pos int) (uint32, int, error) {
	start := pos
	var n uint32
	for pos < len(buf) && isDigit(buf[pos]) {
		n = n*10 + uint32(buf[pos]-'0')
		pos++
	}
	if pos == start {
		return 0, start, newError(ErrExpectedNumericUint, start)
	}
	return n, pos, nil
}

// listSeparator is the array-element delimiter (spec.md §4.4).
const listSeparator = ':'

// GetFArray reads a ':'-separated float array after the letter last matched
// by seen. length bounds the number of elements accepted (exceeding it
// raises ArrayTooLong). When doPad is true and exactly one value was
// supplied with length > 1, that value is broadcast to fill length entries;
// otherwise the returned slice's length is simply the number of values
// actually parsed.
func (b *Buffer) GetFArray(length int, doPad bool) ([]float32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return nil, err
	}
	buf := b.lineBytes()
	var out []float32
	for {
		if len(out) >= length {
			return nil, newArrayTooLongError(pos, length)
		}
		v, next, err := b.resolveOperand(buf, pos)
		if err != nil {
			return nil, err
		}
		f, err := coerceFloat(v, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		pos = next
		if pos >= len(buf) || buf[pos] != listSeparator {
			break
		}
		pos++
	}
	if doPad && len(out) == 1 && length > 1 {
		pad := out[0]
		for len(out) < length {
			out = append(out, pad)
		}
	}
	return out, nil
}

// GetUIArray reads a ':'-separated unsigned-integer array after the letter
// last matched by seen, with the same length/doPad semantics as GetFArray.
func (b *Buffer) GetUIArray(length int, doPad bool) ([]uint32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return nil, err
	}
	buf := b.lineBytes()
	var out []uint32
	for {
		if len(out) >= length {
			return nil, newArrayTooLongError(pos, length)
		}
		v, next, err := b.resolveOperand(buf, pos)
		if err != nil {
			return nil, err
		}
		u, err := coerceUInt(v, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
		pos = next
		if pos >= len(buf) || buf[pos] != listSeparator {
			break
		}
		pos++
	}
	if doPad && len(out) == 1 && length > 1 {
		pad := out[0]
		for len(out) < length {
			out = append(out, pad)
		}
	}
	return out, nil
}

// GetDriverIdArray reads a ':'-separated DriverId array after the letter
// last matched by seen. Driver-id arrays do not support pad broadcast
// (spec.md §4.4).
func (b *Buffer) GetDriverIdArray(length int) ([]DriverId, error) {
	pos, err := b.takePointer()
	if err != nil {
		return nil, err
	}
	buf := b.lineBytes()
	var out []DriverId
	for {
		if len(out) >= length {
			return nil, newArrayTooLongError(pos, length)
		}
		id, next, err := b.readDriverId(buf, pos)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
		pos = next
		if pos >= len(buf) || buf[pos] != listSeparator {
			break
		}
		pos++
	}
	return out, nil
}

// GetQuotedString reads the operand of the letter last matched by seen as a
// double-quoted string with doubled-quote escaping ("" -> "), and the
// firmware's legacy single-char lowercasing convention for a bare
// `'`-prefixed letter.
func (b *Buffer) GetQuotedString() (string, error) {
	pos, err := b.takePointer()
	if err != nil {
		return "", err
	}
	s, _, err := b.readQuotedString(b.lineBytes(), pos)
	return s, err
}

// readQuotedString parses a quoted string (or the `'`-letter shorthand)
// starting at pos, returning the position just past the closing quote.
func (b *Buffer) readQuotedString(buf []byte, pos int) (string, int, error) {
	if pos < len(buf) && buf[pos] == '\'' && pos+1 < len(buf) {
		return string(lower(buf[pos+1])), pos + 2, nil
	}
	if pos >= len(buf) || buf[pos] != '"' {
		return "", pos, newError(ErrStringExpected, pos)
	}
	var out []byte
	i := pos + 1
	for i < len(buf) {
		c := buf[i]
		i++
		if c < 0x20 {
			return "", i, newError(ErrControlCharInString, i-1)
		}
		if c == '"' {
			if i < len(buf) && buf[i] == '"' {
				i++
			} else {
				return string(out), i, nil
			}
		} else if c == '\'' && i < len(buf) {
			switch {
			case isLetter(buf[i]):
				// a lone ' before a letter forces that letter to lower case.
				c = lower(buf[i])
				i++
			case buf[i] == '\'':
				// '' represents a single '.
				i++
			}
		}
		out = append(out, c)
	}
	return "", i, newError(ErrStringExpected, pos)
}

// GetPossiblyQuotedString reads the operand of the letter last matched by
// seen either as a quoted string (terminating at the closing quote, nothing
// appended after it), a brace expression, or, absent either, the raw
// remainder of the line with trailing whitespace stripped.
func (b *Buffer) GetPossiblyQuotedString(allowEmpty bool) (string, error) {
	pos, err := b.takePointer()
	if err != nil {
		return "", err
	}
	s, err := b.readPossiblyQuotedString(pos)
	if err != nil {
		return "", err
	}
	if !allowEmpty && s == "" {
		return "", newError(ErrNonEmptyStringExpected, pos)
	}
	return s, nil
}

func (b *Buffer) readPossiblyQuotedString(pos int) (string, error) {
	buf := b.lineBytes()
	if pos < len(buf) && buf[pos] == '"' {
		s, _, err := b.readQuotedString(buf, pos)
		return s, err
	}
	if pos < len(buf) && buf[pos] == '{' {
		v, _, err := b.evalExpr(buf, pos)
		if err != nil {
			return "", err
		}
		return coerceString(v)
	}
	end := len(buf)
	for end > pos && isSpaceOrTab(buf[end-1]) {
		end--
	}
	for i := pos; i < end; i++ {
		if buf[i] < 0x20 {
			end = i
			break
		}
	}
	if end < pos {
		end = pos
	}
	return string(buf[pos:end]), nil
}

// GetUnprecedentedString reads the remainder of the command line verbatim,
// starting at the command's own parameter start (not a matched letter's
// position), for commands like M117 whose message text has no leading
// parameter letter of its own. Per spec.md's Open Question, calling this
// when the command span is empty is an internal error, not a soft failure.
func (b *Buffer) GetUnprecedentedString(allowEmpty bool) (string, error) {
	if b.cmd.ParameterStart >= b.cmd.CommandEnd {
		return "", newError(ErrInternal, b.cmd.ParameterStart)
	}
	start := b.cmd.ParameterStart
	buf := b.lineBytes()
	for start < b.cmd.CommandEnd && isSpaceOrTab(buf[start]) {
		start++
	}
	s, err := b.readPossiblyQuotedString(start)
	if err != nil {
		return "", err
	}
	if !allowEmpty && s == "" {
		return "", newError(ErrNonEmptyStringExpected, start)
	}
	return s, nil
}

// GetReducedString behaves like GetQuotedString (the operand must start with
// a `"`, and `""` escapes a literal quote) but elides spaces, underscores
// and hyphens and lowercases everything else, matching the firmware's
// filename-comparison rule. Unlike GetQuotedString it does not give `'` any
// special meaning.
func (b *Buffer) GetReducedString() (string, error) {
	pos, err := b.takePointer()
	if err != nil {
		return "", err
	}
	buf := b.lineBytes()
	if pos >= len(buf) || buf[pos] != '"' {
		return "", newError(ErrStringExpected, pos)
	}
	var out []byte
	i := pos + 1
	for i < len(buf) {
		c := buf[i]
		i++
		switch {
		case c == '"':
			if i < len(buf) && buf[i] == '"' {
				i++
				out = append(out, '"')
				continue
			}
			return string(out), nil
		case c == '_' || c == '-' || c == ' ':
			continue
		case c < 0x20:
			return "", newError(ErrControlCharInString, i-1)
		default:
			out = append(out, lower(c))
		}
	}
	return "", newError(ErrStringExpected, pos)
}

// GetIPAddress parses the operand of the letter last matched by seen as
// four dot-separated decimal octets.
func (b *Buffer) GetIPAddress() (uint32, error) {
	pos, err := b.takePointer()
	if err != nil {
		return 0, err
	}
	buf := b.lineBytes()
	var octets [4]uint32
	n := 0
	for {
		v, next, err := scanUintLiteral(buf, pos)
		if err != nil || v > 255 {
			return 0, newError(ErrInvalidIP, pos)
		}
		if n == 4 {
			return 0, newError(ErrInvalidIP, pos)
		}
		octets[n] = v
		n++
		pos = next
		if pos >= len(buf) || buf[pos] != '.' {
			break
		}
		pos++
	}
	if n != 4 {
		return 0, newError(ErrInvalidIP, pos)
	}
	return octets[0]<<24 | octets[1]<<16 | octets[2]<<8 | octets[3], nil
}

// GetMacAddress parses the operand of the letter last matched by seen as
// six colon-separated hex bytes.
func (b *Buffer) GetMacAddress() ([6]byte, error) {
	pos, err := b.takePointer()
	if err != nil {
		return [6]byte{}, err
	}
	buf := b.lineBytes()
	var mac [6]byte
	n := 0
	for {
		byteStart := pos
		for pos < len(buf) && isHexDigit(buf[pos]) {
			pos++
		}
		if pos == byteStart || pos-byteStart > 2 {
			return [6]byte{}, newError(ErrInvalidMAC, byteStart)
		}
		v, err := strconv.ParseUint(string(buf[byteStart:pos]), 16, 8)
		if err != nil {
			return [6]byte{}, newError(ErrInvalidMAC, byteStart)
		}
		if n == 6 {
			return [6]byte{}, newError(ErrInvalidMAC, byteStart)
		}
		mac[n] = byte(v)
		n++
		if pos >= len(buf) || buf[pos] != ':' {
			break
		}
		pos++
	}
	if n != 6 {
		return [6]byte{}, newError(ErrInvalidMAC, pos)
	}
	return mac, nil
}
