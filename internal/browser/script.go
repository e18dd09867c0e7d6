package browser

import (
	"encoding/json"
	"fmt"
)

// Binding names exposed to the page.
const (
	bindingActivate  = "spendguardActivate"
	bindingMutations = "spendguardMutations"
	bindingAction    = "spendguardAction"
)

// keyAttr marks every element the runtime has described to Go.
const keyAttr = "data-spendguard-key"

// runtimeTemplate is installed on every new document. It describes elements
// to Go, holds the click guards, reports mutations and renders the overlay.
// The single %s is the JSON-quoted candidate selector.
const runtimeTemplate = `(() => {
  if (window.__spendguard) return;
  const KEY = "data-spendguard-key";
  const CANDIDATES = %s;
  const guards = new Set();
  const token = () => Math.random().toString(36).slice(2, 10);

  const keyOf = (el) => {
    let k = el.getAttribute(KEY);
    if (!k) { k = "sg-" + token(); el.setAttribute(KEY, k); }
    return k;
  };
  const describe = (el) => {
    const attrs = {};
    for (const a of Array.from(el.attributes)) attrs[a.name] = String(a.value).slice(0, 500);
    const form = el.form || (el.closest && el.closest("form"));
    return {
      key: keyOf(el),
      tag: el.tagName.toLowerCase(),
      text: String(el.innerText || el.textContent || "").slice(0, 1000),
      attrs,
      form: form ? keyOf(form) : "",
    };
  };
  const find = (key) => document.querySelector("[" + KEY + "=\"" + CSS.escape(key) + "\"]");
  const guardedIn = (ev) => {
    for (const node of ev.composedPath()) {
      if (node && node.getAttribute && guards.has(node.getAttribute(KEY))) return node;
    }
    return null;
  };

  const onActivate = (ev) => {
    if (!ev.isTrusted) return;
    let el = guardedIn(ev);
    if (!el && ev.type === "submit" && ev.submitter && guards.has(ev.submitter.getAttribute(KEY))) el = ev.submitter;
    if (!el) return;
    ev.preventDefault();
    ev.stopImmediatePropagation();
    window.` + bindingActivate + `({ key: el.getAttribute(KEY) });
  };
  window.addEventListener("click", onActivate, true);
  window.addEventListener("submit", onActivate, true);

  let pending = [];
  let flushQueued = false;
  const flush = () => {
    flushQueued = false;
    const added = pending;
    pending = [];
    window.` + bindingMutations + `({ url: location.href, added: added.filter((el) => el.isConnected).map(describe) });
  };
  new MutationObserver((records) => {
    for (const r of records) {
      for (const node of r.addedNodes) {
        if (node.nodeType !== 1) continue;
        if (node.matches(CANDIDATES)) pending.push(node);
        pending.push(...node.querySelectorAll(CANDIDATES));
      }
    }
    if (pending.length && !flushQueued) { flushQueued = true; setTimeout(flush, 50); }
  }).observe(document, { childList: true, subtree: true });

  let host = null;
  let root = null;
  const overlay = {
    show(v) {
      if (!host) {
        host = document.createElement("div");
        host.style.cssText = "position:fixed;inset:0;z-index:2147483647;";
        root = host.attachShadow({ mode: "closed" });
        (document.body || document.documentElement).appendChild(host);
      }
      overlay.render(v);
    },
    render(v) {
      if (!root) return;
      const esc = (s) => String(s || "").replace(/[&<>"]/g, (c) => ({ "&": "&amp;", "<": "&lt;", ">": "&gt;", "\"": "&quot;" }[c]));
      const pct = v.total ? Math.round(((v.total - v.remaining) / v.total) * 100) : 100;
      root.innerHTML =
        "<style>" +
        ".bg{position:fixed;inset:0;background:rgba(15,23,42,.72);display:flex;align-items:center;justify-content:center;font:15px system-ui,sans-serif}" +
        ".card{background:#fff;color:#0f172a;border-radius:14px;max-width:440px;width:90%%;padding:24px;box-shadow:0 20px 50px rgba(0,0,0,.35)}" +
        ".bar{height:6px;background:#e2e8f0;border-radius:3px;margin:16px 0}.bar div{height:100%%;background:#10b981;border-radius:3px}" +
        ".warn{background:#fef3c7;color:#92400e;border-radius:8px;padding:8px 10px;margin:6px 0}" +
        "button{border:0;border-radius:8px;padding:10px 14px;font-weight:600;cursor:pointer;margin-right:8px}" +
        ".stay{background:#10b981;color:#fff}.go{background:#e2e8f0;color:#334155}.go[disabled]{opacity:.45;cursor:not-allowed}" +
        "</style>" +
        "<div class=bg><div class=card>" +
        "<h2>" + esc(v.headline) + "</h2>" +
        (v.price ? "<p><strong>" + esc(v.price) + "</strong> " + esc(v.platform) + "</p>" : "") +
        "<p>" + esc(v.message) + "</p>" +
        (v.warnings || []).map((w) => "<div class=warn>" + esc(w) + "</div>").join("") +
        "<div class=bar><div style=\"width:" + pct + "%%\"></div></div>" +
        "<p>" + v.remaining + "s left</p>" +
        "<button class=stay data-act=abandon>Take more time</button>" +
        "<button class=go data-act=proceed" + (v.skipAvailable ? "" : " disabled") + ">Continue to purchase</button>" +
        "</div></div>";
      for (const b of root.querySelectorAll("button")) {
        b.addEventListener("click", () => window.` + bindingAction + `({ action: b.dataset.act }));
      }
    },
    hide() {
      if (host) host.remove();
      host = null;
      root = null;
    },
    toast(msg) {
      const t = document.createElement("div");
      t.textContent = msg;
      t.style.cssText = "position:fixed;right:20px;bottom:20px;z-index:2147483647;background:#10b981;color:#fff;padding:12px 16px;border-radius:10px;font:14px system-ui,sans-serif";
      (document.body || document.documentElement).appendChild(t);
      setTimeout(() => t.remove(), 4000);
    },
  };

  let savedOverflow = null;
  window.__spendguard = {
    query: (sel) => Array.from(document.querySelectorAll(sel)).slice(0, 2000).map(describe),
    guard: (key) => { if (!find(key)) return false; guards.add(key); return true; },
    release: (key) => { guards.delete(key); return true; },
    activate: (key) => {
      const el = find(key);
      if (!el) return { found: false, accepted: false };
      if (el.disabled) return { found: true, accepted: false };
      el.dispatchEvent(new MouseEvent("click", { bubbles: true, cancelable: true, view: window }));
      return { found: true, accepted: true };
    },
    submit: (key) => {
      const form = find(key);
      if (!form || form.tagName !== "FORM") return false;
      if (form.requestSubmit) form.requestSubmit(); else form.submit();
      return true;
    },
    lock: (on) => {
      const s = document.documentElement.style;
      if (on) { if (savedOverflow === null) savedOverflow = s.overflow; s.overflow = "hidden"; }
      else if (savedOverflow !== null) { s.overflow = savedOverflow; savedOverflow = null; }
      return true;
    },
    overlay,
  };
})()`

// runtimeScript returns the runtime for the given candidate selector.
func runtimeScript(candidates string) string {
	quoted, err := json.Marshal(candidates)
	if err != nil {
		quoted = []byte(`"button"`)
	}
	return fmt.Sprintf(runtimeTemplate, quoted)
}
