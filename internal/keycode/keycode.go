// Package keycode provides the bidirectional mapping between symbolic Linux
// input-event-code names (e.g. "KEY_LEFTCTRL") and their integer codes.
package keycode

import "fmt"

// Code is a Linux evdev KEY_* code. 0 is reserved ("no key").
type Code uint16

// Key codes from linux/input-event-codes.h. Only the subset a keyboard
// remapper plausibly needs to name is enumerated; anything else gets
// CodeToName's numeric fallback name, which NameToCode does not resolve.
const (
	KEY_RESERVED Code = 0
	KEY_ESC      Code = 1
	KEY_1        Code = 2
	KEY_2        Code = 3
	KEY_3        Code = 4
	KEY_4        Code = 5
	KEY_5        Code = 6
	KEY_6        Code = 7
	KEY_7        Code = 8
	KEY_8        Code = 9
	KEY_9        Code = 10
	KEY_0        Code = 11

	KEY_MINUS     Code = 12
	KEY_EQUAL     Code = 13
	KEY_BACKSPACE Code = 14
	KEY_TAB       Code = 15

	KEY_Q Code = 16
	KEY_W Code = 17
	KEY_E Code = 18
	KEY_R Code = 19
	KEY_T Code = 20
	KEY_Y Code = 21
	KEY_U Code = 22
	KEY_I Code = 23
	KEY_O Code = 24
	KEY_P Code = 25

	KEY_LEFTBRACE  Code = 26
	KEY_RIGHTBRACE Code = 27
	KEY_ENTER      Code = 28
	KEY_LEFTCTRL   Code = 29

	KEY_A Code = 30
	KEY_S Code = 31
	KEY_D Code = 32
	KEY_F Code = 33
	KEY_G Code = 34
	KEY_H Code = 35
	KEY_J Code = 36
	KEY_K Code = 37
	KEY_L Code = 38

	KEY_SEMICOLON  Code = 39
	KEY_APOSTROPHE Code = 40
	KEY_GRAVE      Code = 41
	KEY_LEFTSHIFT  Code = 42
	KEY_BACKSLASH  Code = 43

	KEY_Z Code = 44
	KEY_X Code = 45
	KEY_C Code = 46
	KEY_V Code = 47
	KEY_B Code = 48
	KEY_N Code = 49
	KEY_M Code = 50

	KEY_COMMA      Code = 51
	KEY_DOT        Code = 52
	KEY_SLASH      Code = 53
	KEY_RIGHTSHIFT Code = 54
	KEY_KPASTERISK Code = 55
	KEY_LEFTALT    Code = 56
	KEY_SPACE      Code = 57
	KEY_CAPSLOCK   Code = 58

	KEY_F1  Code = 59
	KEY_F2  Code = 60
	KEY_F3  Code = 61
	KEY_F4  Code = 62
	KEY_F5  Code = 63
	KEY_F6  Code = 64
	KEY_F7  Code = 65
	KEY_F8  Code = 66
	KEY_F9  Code = 67
	KEY_F10 Code = 68

	KEY_NUMLOCK    Code = 69
	KEY_SCROLLLOCK Code = 70

	KEY_KP7      Code = 71
	KEY_KP8      Code = 72
	KEY_KP9      Code = 73
	KEY_KPMINUS  Code = 74
	KEY_KP4      Code = 75
	KEY_KP5      Code = 76
	KEY_KP6      Code = 77
	KEY_KPPLUS   Code = 78
	KEY_KP1      Code = 79
	KEY_KP2      Code = 80
	KEY_KP3      Code = 81
	KEY_KP0      Code = 82
	KEY_KPDOT    Code = 83

	KEY_102ND Code = 86
	KEY_F11   Code = 87
	KEY_F12   Code = 88

	KEY_KPENTER    Code = 96
	KEY_RIGHTCTRL  Code = 97
	KEY_KPSLASH    Code = 98
	KEY_SYSRQ      Code = 99
	KEY_RIGHTALT   Code = 100

	KEY_HOME     Code = 102
	KEY_UP       Code = 103
	KEY_PAGEUP   Code = 104
	KEY_LEFT     Code = 105
	KEY_RIGHT    Code = 106
	KEY_END      Code = 107
	KEY_DOWN     Code = 108
	KEY_PAGEDOWN Code = 109
	KEY_INSERT   Code = 110
	KEY_DELETE   Code = 111

	KEY_MUTE       Code = 113
	KEY_VOLUMEDOWN Code = 114
	KEY_VOLUMEUP   Code = 115
	KEY_POWER      Code = 116
	KEY_KPEQUAL    Code = 117
	KEY_PAUSE      Code = 119

	KEY_KPCOMMA   Code = 121
	KEY_LEFTMETA  Code = 125
	KEY_RIGHTMETA Code = 126
	KEY_COMPOSE   Code = 127

	KEY_STOP  Code = 128
	KEY_AGAIN Code = 129
	KEY_UNDO  Code = 131
	KEY_COPY  Code = 133
	KEY_PASTE Code = 135
	KEY_FIND  Code = 136
	KEY_CUT   Code = 137
	KEY_HELP  Code = 138
	KEY_MENU  Code = 139

	KEY_CALC  Code = 140
	KEY_SLEEP Code = 142
	KEY_WWW   Code = 150

	KEY_BACK    Code = 158
	KEY_FORWARD Code = 159

	KEY_EJECTCD      Code = 161
	KEY_NEXTSONG     Code = 163
	KEY_PLAYPAUSE    Code = 164
	KEY_PREVIOUSSONG Code = 165
	KEY_STOPCD       Code = 166
	KEY_REWIND       Code = 168

	KEY_REFRESH Code = 173
	KEY_EDIT    Code = 176

	KEY_F13 Code = 183
	KEY_F14 Code = 184
	KEY_F15 Code = 185
	KEY_F16 Code = 186
	KEY_F17 Code = 187
	KEY_F18 Code = 188
	KEY_F19 Code = 189
	KEY_F20 Code = 190
	KEY_F21 Code = 191
	KEY_F22 Code = 192
	KEY_F23 Code = 193
	KEY_F24 Code = 194

	KEY_PLAY         Code = 207
	KEY_PRINT        Code = 210
	KEY_SEARCH       Code = 217
	KEY_BRIGHTNESSDOWN Code = 224
	KEY_BRIGHTNESSUP   Code = 225
	KEY_MEDIA          Code = 226

	KEY_KBDILLUMTOGGLE Code = 228
	KEY_KBDILLUMDOWN   Code = 229
	KEY_KBDILLUMUP     Code = 230

	KEY_SEND    Code = 231
	KEY_REPLY   Code = 232
	KEY_SAVE    Code = 234

	KEY_MICMUTE Code = 248
)

// codeToName holds the canonical spelling for every constant declared above.
var codeToName = map[Code]string{
	KEY_RESERVED: "KEY_RESERVED", KEY_ESC: "KEY_ESC",
	KEY_1: "KEY_1", KEY_2: "KEY_2", KEY_3: "KEY_3", KEY_4: "KEY_4", KEY_5: "KEY_5",
	KEY_6: "KEY_6", KEY_7: "KEY_7", KEY_8: "KEY_8", KEY_9: "KEY_9", KEY_0: "KEY_0",
	KEY_MINUS: "KEY_MINUS", KEY_EQUAL: "KEY_EQUAL", KEY_BACKSPACE: "KEY_BACKSPACE", KEY_TAB: "KEY_TAB",
	KEY_Q: "KEY_Q", KEY_W: "KEY_W", KEY_E: "KEY_E", KEY_R: "KEY_R", KEY_T: "KEY_T",
	KEY_Y: "KEY_Y", KEY_U: "KEY_U", KEY_I: "KEY_I", KEY_O: "KEY_O", KEY_P: "KEY_P",
	KEY_LEFTBRACE: "KEY_LEFTBRACE", KEY_RIGHTBRACE: "KEY_RIGHTBRACE", KEY_ENTER: "KEY_ENTER", KEY_LEFTCTRL: "KEY_LEFTCTRL",
	KEY_A: "KEY_A", KEY_S: "KEY_S", KEY_D: "KEY_D", KEY_F: "KEY_F", KEY_G: "KEY_G",
	KEY_H: "KEY_H", KEY_J: "KEY_J", KEY_K: "KEY_K", KEY_L: "KEY_L",
	KEY_SEMICOLON: "KEY_SEMICOLON", KEY_APOSTROPHE: "KEY_APOSTROPHE", KEY_GRAVE: "KEY_GRAVE",
	KEY_LEFTSHIFT: "KEY_LEFTSHIFT", KEY_BACKSLASH: "KEY_BACKSLASH",
	KEY_Z: "KEY_Z", KEY_X: "KEY_X", KEY_C: "KEY_C", KEY_V: "KEY_V", KEY_B: "KEY_B",
	KEY_N: "KEY_N", KEY_M: "KEY_M",
	KEY_COMMA: "KEY_COMMA", KEY_DOT: "KEY_DOT", KEY_SLASH: "KEY_SLASH", KEY_RIGHTSHIFT: "KEY_RIGHTSHIFT",
	KEY_KPASTERISK: "KEY_KPASTERISK", KEY_LEFTALT: "KEY_LEFTALT", KEY_SPACE: "KEY_SPACE", KEY_CAPSLOCK: "KEY_CAPSLOCK",
	KEY_F1: "KEY_F1", KEY_F2: "KEY_F2", KEY_F3: "KEY_F3", KEY_F4: "KEY_F4", KEY_F5: "KEY_F5",
	KEY_F6: "KEY_F6", KEY_F7: "KEY_F7", KEY_F8: "KEY_F8", KEY_F9: "KEY_F9", KEY_F10: "KEY_F10",
	KEY_NUMLOCK: "KEY_NUMLOCK", KEY_SCROLLLOCK: "KEY_SCROLLLOCK",
	KEY_KP7: "KEY_KP7", KEY_KP8: "KEY_KP8", KEY_KP9: "KEY_KP9", KEY_KPMINUS: "KEY_KPMINUS",
	KEY_KP4: "KEY_KP4", KEY_KP5: "KEY_KP5", KEY_KP6: "KEY_KP6", KEY_KPPLUS: "KEY_KPPLUS",
	KEY_KP1: "KEY_KP1", KEY_KP2: "KEY_KP2", KEY_KP3: "KEY_KP3", KEY_KP0: "KEY_KP0", KEY_KPDOT: "KEY_KPDOT",
	KEY_102ND: "KEY_102ND", KEY_F11: "KEY_F11", KEY_F12: "KEY_F12",
	KEY_KPENTER: "KEY_KPENTER", KEY_RIGHTCTRL: "KEY_RIGHTCTRL", KEY_KPSLASH: "KEY_KPSLASH",
	KEY_SYSRQ: "KEY_SYSRQ", KEY_RIGHTALT: "KEY_RIGHTALT",
	KEY_HOME: "KEY_HOME", KEY_UP: "KEY_UP", KEY_PAGEUP: "KEY_PAGEUP", KEY_LEFT: "KEY_LEFT",
	KEY_RIGHT: "KEY_RIGHT", KEY_END: "KEY_END", KEY_DOWN: "KEY_DOWN", KEY_PAGEDOWN: "KEY_PAGEDOWN",
	KEY_INSERT: "KEY_INSERT", KEY_DELETE: "KEY_DELETE",
	KEY_MUTE: "KEY_MUTE", KEY_VOLUMEDOWN: "KEY_VOLUMEDOWN", KEY_VOLUMEUP: "KEY_VOLUMEUP",
	KEY_POWER: "KEY_POWER", KEY_KPEQUAL: "KEY_KPEQUAL", KEY_PAUSE: "KEY_PAUSE",
	KEY_KPCOMMA: "KEY_KPCOMMA", KEY_LEFTMETA: "KEY_LEFTMETA", KEY_RIGHTMETA: "KEY_RIGHTMETA", KEY_COMPOSE: "KEY_COMPOSE",
	KEY_STOP: "KEY_STOP", KEY_AGAIN: "KEY_AGAIN", KEY_UNDO: "KEY_UNDO", KEY_COPY: "KEY_COPY",
	KEY_PASTE: "KEY_PASTE", KEY_FIND: "KEY_FIND", KEY_CUT: "KEY_CUT", KEY_HELP: "KEY_HELP", KEY_MENU: "KEY_MENU",
	KEY_CALC: "KEY_CALC", KEY_SLEEP: "KEY_SLEEP", KEY_WWW: "KEY_WWW",
	KEY_BACK: "KEY_BACK", KEY_FORWARD: "KEY_FORWARD",
	KEY_EJECTCD: "KEY_EJECTCD", KEY_NEXTSONG: "KEY_NEXTSONG", KEY_PLAYPAUSE: "KEY_PLAYPAUSE",
	KEY_PREVIOUSSONG: "KEY_PREVIOUSSONG", KEY_STOPCD: "KEY_STOPCD", KEY_REWIND: "KEY_REWIND",
	KEY_REFRESH: "KEY_REFRESH", KEY_EDIT: "KEY_EDIT",
	KEY_F13: "KEY_F13", KEY_F14: "KEY_F14", KEY_F15: "KEY_F15", KEY_F16: "KEY_F16",
	KEY_F17: "KEY_F17", KEY_F18: "KEY_F18", KEY_F19: "KEY_F19", KEY_F20: "KEY_F20",
	KEY_F21: "KEY_F21", KEY_F22: "KEY_F22", KEY_F23: "KEY_F23", KEY_F24: "KEY_F24",
	KEY_PLAY: "KEY_PLAY", KEY_PRINT: "KEY_PRINT", KEY_SEARCH: "KEY_SEARCH",
	KEY_BRIGHTNESSDOWN: "KEY_BRIGHTNESSDOWN", KEY_BRIGHTNESSUP: "KEY_BRIGHTNESSUP", KEY_MEDIA: "KEY_MEDIA",
	KEY_KBDILLUMTOGGLE: "KEY_KBDILLUMTOGGLE", KEY_KBDILLUMDOWN: "KEY_KBDILLUMDOWN", KEY_KBDILLUMUP: "KEY_KBDILLUMUP",
	KEY_SEND: "KEY_SEND", KEY_REPLY: "KEY_REPLY", KEY_SAVE: "KEY_SAVE",
	KEY_MICMUTE: "KEY_MICMUTE",
}

var nameToCode map[string]Code

func init() {
	nameToCode = make(map[string]Code, len(codeToName))
	for code, name := range codeToName {
		nameToCode[name] = code
	}
}

// CodeToName returns the canonical KEY_* name for code, or a numeric
// fallback for codes this table doesn't carry a name for.
func CodeToName(code Code) string {
	if name, ok := codeToName[code]; ok {
		return name
	}
	return fmt.Sprintf("UNRECOGNIZED_KEY_CODE(%d)", code)
}

// NameToCode resolves a KEY_* name (case-sensitive, expects the KEY_
// prefix) to its code.
func NameToCode(name string) (Code, bool) {
	code, ok := nameToCode[name]
	return code, ok
}
