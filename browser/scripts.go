package browser

import "strings"

// TextSelectorPrefix 按可见文字匹配的选择器前缀
const TextSelectorPrefix = "text="

// findFunc 页面内的元素查找函数，支持 CSS 与 text= 两种写法。
// text= 匹配文字完全相等的最内层可点击元素，找不到时退化为包含匹配。
const findFunc = `
const __find = (sel) => {
	if (!sel) return null;
	if (sel.startsWith('text=')) {
		const want = sel.slice(5).trim();
		const nodes = Array.from(document.querySelectorAll('button,[role="button"],a,span,div,label'));
		const text = (n) => (n.innerText || n.textContent || '').trim();
		let hit = nodes.filter(n => text(n) === want);
		if (hit.length === 0) hit = nodes.filter(n => text(n).includes(want));
		if (hit.length === 0) return null;
		hit.sort((a, b) => text(a).length - text(b).length);
		const el = hit[0];
		return el.closest('button,[role="button"],a') || el;
	}
	return document.querySelector(sel);
};
const __visible = (el) => {
	if (!el || !el.isConnected) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	return el.getClientRects().length > 0;
};
`

// WithFinder 把 body 包装成 "(arg) => {...}"，body 内可以使用 __find / __visible
func WithFinder(body string) string {
	var b strings.Builder
	b.WriteString("(arg) => {\n")
	b.WriteString(findFunc)
	b.WriteString(body)
	b.WriteString("\n}")
	return b.String()
}

// IsTextSelector 是否为 text= 选择器
func IsTextSelector(sel string) bool {
	return strings.HasPrefix(sel, TextSelectorPrefix)
}

// VisibleScript 检查 arg.selector 对应元素是否可见
var VisibleScript = WithFinder(`return __visible(__find(arg.selector));`)

// ScrollIntoViewScript 滚动到元素并返回中心点坐标，供 CDP 生成真实鼠标事件
var ScrollIntoViewScript = WithFinder(`
const el = __find(arg.selector);
if (!__visible(el)) return { ok: false };
el.scrollIntoView({ block: 'center', inline: 'center' });
const r = el.getBoundingClientRect();
return { ok: true, x: r.left + r.width / 2, y: r.top + r.height / 2 };
`)

// FocusScript 聚焦元素，contentEditable 时把光标移到末尾
var FocusScript = WithFinder(`
const el = __find(arg.selector);
if (!el) return false;
el.focus();
if (el.isContentEditable) {
	const range = document.createRange();
	range.selectNodeContents(el);
	range.collapse(false);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
}
return document.activeElement === el || el.contains(document.activeElement);
`)

// DispatchEventScript 在元素上派发合成事件。paste/drop 会携带填充好的 DataTransfer，
// 交给编辑器自己的粘贴处理逻辑完成插入。
var DispatchEventScript = WithFinder(`
const el = __find(arg.selector);
if (!el) return { ok: false, error: 'element not found: ' + arg.selector };
el.focus();
let ev;
if (arg.type === 'paste' || arg.type === 'copy' || arg.type === 'cut') {
	const dt = new DataTransfer();
	for (const [mime, payload] of Object.entries(arg.data || {})) dt.setData(mime, payload);
	ev = new ClipboardEvent(arg.type, { clipboardData: dt, bubbles: true, cancelable: true });
} else if (arg.type === 'drop') {
	const dt = new DataTransfer();
	for (const [mime, payload] of Object.entries(arg.data || {})) dt.setData(mime, payload);
	ev = new DragEvent('drop', { dataTransfer: dt, bubbles: true, cancelable: true });
} else {
	ev = new Event(arg.type, { bubbles: true, cancelable: true });
}
el.dispatchEvent(ev);
return { ok: true, handled: ev.defaultPrevented };
`)

// TextLengthScript 元素当前的可见文字长度（textarea/input 取 value）
var TextLengthScript = WithFinder(`
const el = __find(arg.selector);
if (!el) return -1;
if ('value' in el && typeof el.value === 'string') return el.value.length;
return (el.innerText || el.textContent || '').trim().length;
`)

// ElementTextScript 元素的可见文字，用于内容校验
var ElementTextScript = WithFinder(`
const el = __find(arg.selector);
if (!el) return '';
if ('value' in el && typeof el.value === 'string') return el.value;
return el.innerText || el.textContent || '';
`)

// PresentScript 元素是否存在于 DOM 中（文件输入框通常是隐藏的）
var PresentScript = WithFinder(`return __find(arg.selector) !== null;`)

// SelectTextScript 在元素内查找 arg.text 并选中，供后续按键删除或替换
var SelectTextScript = WithFinder(`
const root = __find(arg.selector);
if (!root) return false;
const walker = document.createTreeWalker(root, NodeFilter.SHOW_TEXT);
let node;
while ((node = walker.nextNode())) {
	const idx = node.nodeValue.indexOf(arg.text);
	if (idx < 0) continue;
	root.focus();
	const range = document.createRange();
	range.setStart(node, idx);
	range.setEnd(node, idx + arg.text.length);
	const sel = window.getSelection();
	sel.removeAllRanges();
	sel.addRange(range);
	return true;
}
return false;
`)

// ImageCountScript 元素内图片数量，用于判断上传是否完成
var ImageCountScript = WithFinder(`
const root = __find(arg.selector);
if (!root) return -1;
return root.querySelectorAll('img').length;
`)
