package cdp

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/chromedp/cdproto/input"
)

// keyDef 一个按键在 Input.dispatchKeyEvent 中的描述
type keyDef struct {
	key  string
	code string
	vk   int64
	text string
}

var namedKeys = map[string]keyDef{
	"Enter":      {key: "Enter", code: "Enter", vk: 13, text: "\r"},
	"Tab":        {key: "Tab", code: "Tab", vk: 9},
	"Backspace":  {key: "Backspace", code: "Backspace", vk: 8},
	"Delete":     {key: "Delete", code: "Delete", vk: 46},
	"Escape":     {key: "Escape", code: "Escape", vk: 27},
	"Space":      {key: " ", code: "Space", vk: 32, text: " "},
	"ArrowLeft":  {key: "ArrowLeft", code: "ArrowLeft", vk: 37},
	"ArrowUp":    {key: "ArrowUp", code: "ArrowUp", vk: 38},
	"ArrowRight": {key: "ArrowRight", code: "ArrowRight", vk: 39},
	"ArrowDown":  {key: "ArrowDown", code: "ArrowDown", vk: 40},
	"Home":       {key: "Home", code: "Home", vk: 36},
	"End":        {key: "End", code: "End", vk: 35},
	"Control":    {key: "Control", code: "ControlLeft", vk: 17},
	"Shift":      {key: "Shift", code: "ShiftLeft", vk: 16},
	"Alt":        {key: "Alt", code: "AltLeft", vk: 18},
	"Meta":       {key: "Meta", code: "MetaLeft", vk: 91},
}

var modifierBits = map[string]input.Modifier{
	"Control": input.ModifierCtrl,
	"Shift":   input.ModifierShift,
	"Alt":     input.ModifierAlt,
	"Meta":    input.ModifierMeta,
}

// chord 解析后的组合键，例如 "ControlOrMeta+Enter"
type chord struct {
	modifiers []string
	mask      input.Modifier
	key       keyDef
	// commands macOS 上原始按键不会触发编辑命令，需要随 keyDown 一起下发
	commands []string
}

// macCommands Meta 组合键对应的编辑命令
var macCommands = map[string]string{
	"a": "selectAll",
	"c": "copy",
	"x": "cut",
	"v": "paste",
	"z": "undo",
}

// parseChord 解析 Playwright 风格的按键描述
func parseChord(s string) (chord, error) {
	return parseChordFor(runtime.GOOS, s)
}

func parseChordFor(goos, s string) (chord, error) {
	var c chord
	parts := strings.Split(s, "+")
	if s == "+" {
		parts = []string{"+"}
	} else if strings.HasSuffix(s, "++") {
		parts = append(strings.Split(strings.TrimSuffix(s, "++"), "+"), "+")
	}

	for i, p := range parts {
		name := normalizeKeyName(goos, p)
		if i < len(parts)-1 {
			bit, ok := modifierBits[name]
			if !ok {
				return chord{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			c.modifiers = append(c.modifiers, name)
			c.mask |= bit
			continue
		}
		def, err := lookupKey(name)
		if err != nil {
			return chord{}, fmt.Errorf("%w in %q", err, s)
		}
		c.key = def
	}
	if goos == "darwin" && c.mask == input.ModifierMeta {
		if cmd, ok := macCommands[strings.ToLower(c.key.key)]; ok {
			c.commands = []string{cmd}
		}
	}
	return c, nil
}

func normalizeKeyName(goos, name string) string {
	switch name {
	case "Ctrl":
		return "Control"
	case "Cmd", "Command":
		return "Meta"
	case "Option":
		return "Alt"
	case "ControlOrMeta":
		if goos == "darwin" {
			return "Meta"
		}
		return "Control"
	}
	return name
}

func lookupKey(name string) (keyDef, error) {
	if def, ok := namedKeys[name]; ok {
		return def, nil
	}
	if len(name) != 1 {
		return keyDef{}, fmt.Errorf("unknown key %q", name)
	}

	ch := name[0]
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		upper := strings.ToUpper(name)
		return keyDef{key: name, code: "Key" + upper, vk: int64(upper[0]), text: name}, nil
	case ch >= '0' && ch <= '9':
		return keyDef{key: name, code: "Digit" + name, vk: int64(ch), text: name}, nil
	}
	return keyDef{key: name, text: name}, nil
}

// events 生成按下修饰键、主键、再逆序释放的事件序列
func (c chord) events() []*input.DispatchKeyEventParams {
	var out []*input.DispatchKeyEventParams
	var mask input.Modifier
	for _, name := range c.modifiers {
		def := namedKeys[name]
		mask |= modifierBits[name]
		out = append(out, keyEvent(input.KeyRawDown, def, mask, ""))
	}

	text := c.key.text
	// 带 Ctrl/Meta 的组合键不产生字符输入
	if c.mask&(input.ModifierCtrl|input.ModifierMeta) != 0 {
		text = ""
	}
	var down *input.DispatchKeyEventParams
	if text != "" {
		down = keyEvent(input.KeyDown, c.key, mask, text)
	} else {
		down = keyEvent(input.KeyRawDown, c.key, mask, "")
	}
	down.Commands = c.commands
	out = append(out, down)
	out = append(out, keyEvent(input.KeyUp, c.key, mask, ""))

	for i := len(c.modifiers) - 1; i >= 0; i-- {
		name := c.modifiers[i]
		mask &^= modifierBits[name]
		out = append(out, keyEvent(input.KeyUp, namedKeys[name], mask, ""))
	}
	return out
}

func keyEvent(typ input.KeyType, def keyDef, mask input.Modifier, text string) *input.DispatchKeyEventParams {
	return &input.DispatchKeyEventParams{
		Type:                  typ,
		Modifiers:             mask,
		Key:                   def.key,
		Code:                  def.code,
		WindowsVirtualKeyCode: def.vk,
		NativeVirtualKeyCode:  def.vk,
		Text:                  text,
		UnmodifiedText:        text,
	}
}
