// Package runtimeassets holds the framework's own client runtime
// scripts: the wire codec, the HMR client, and the minimal page mount
// harness the generated frontend entry (internal/entrygen.Frontend)
// calls into. These are shipped with the framework rather than
// derived from project source, so they are Go string constants,
// embedded directly rather than read off disk.
//
// Both the dev server (serving them at their own URLs, spec §4.E) and
// the bundler's resolver plugin (internal/transform, which needs them
// as virtual modules when bundling an entry that imports them) need
// the same source, so it lives here rather than in either package.
package runtimeassets

// Assets maps each runtime script's public path to its source.
var Assets = map[string]string{
	"/peaque-wire.js":   WireJS,
	"/peaque-dev.js":    DevJS,
	"/peaque-loader.js": LoaderJS,
}

// WireJS mirrors internal/wire's envelope format so generated
// server-action shims (transform.GenerateShim) and the client runtime
// agree on one wire shape.
const WireJS = `
const TAG = "__peaque_wire__";

function prepare(v) {
  if (v === undefined) return { [TAG]: "undefined" };
  if (typeof v === "number" && Number.isNaN(v)) return { [TAG]: "NaN" };
  if (v instanceof Date) return { [TAG]: "Date", value: v.toISOString() };
  if (v instanceof RegExp) return { [TAG]: "RegExp", value: { source: v.source, flags: v.flags } };
  if (typeof v === "bigint") return { [TAG]: "BigInt", value: v.toString() };
  if (v instanceof Uint8Array) return { [TAG]: "Uint8Array", value: btoa(String.fromCharCode(...v)) };
  if (v instanceof Map) return { [TAG]: "Map", value: [...v.entries()].map(([k, val]) => [k, prepare(val)]) };
  if (v instanceof Set) return { [TAG]: "Set", value: [...v].map(prepare) };
  if (Array.isArray(v)) return v.map(prepare);
  if (v && typeof v === "object") {
    const out = {};
    for (const k of Object.keys(v)) out[k] = prepare(v[k]);
    return out;
  }
  return v;
}

function restore(v) {
  if (v && typeof v === "object" && !Array.isArray(v)) {
    if (TAG in v) {
      switch (v[TAG]) {
        case "undefined": return undefined;
        case "NaN": return NaN;
        case "Date": return new Date(v.value);
        case "RegExp": return new RegExp(v.value.source, v.value.flags);
        case "BigInt": return BigInt(v.value);
        case "Uint8Array": return Uint8Array.from(atob(v.value), c => c.charCodeAt(0));
        case "Map": return new Map(v.value.map(([k, val]) => [k, restore(val)]));
        case "Set": return new Set(v.value.map(restore));
        default: throw new Error("peaque wire: unknown envelope " + v[TAG]);
      }
    }
    const out = {};
    for (const k of Object.keys(v)) out[k] = restore(v[k]);
    return out;
  }
  if (Array.isArray(v)) return v.map(restore);
  return v;
}

export function encode(v) {
  return JSON.stringify(prepare(v));
}

export function decode(text) {
  return restore(JSON.parse(text));
}
`

// DevJS is the HMR client: it opens the /hmr WebSocket and re-imports
// changed modules on notification, per spec §4.E's HMR protocol.
const DevJS = `
const scopes = new Map();

export function registerRefreshScope(modulePath) {
  let scope = scopes.get(modulePath);
  if (!scope) {
    scope = { listeners: new Set() };
    scopes.set(modulePath, scope);
  }
  return scope;
}

export function performRefresh(scope, modulePath) {
  for (const listener of scope.listeners) listener();
}

function connect() {
  const proto = location.protocol === "https:" ? "wss:" : "ws:";
  const ws = new WebSocket(proto + "//" + location.host + "/hmr");
  ws.onmessage = (evt) => {
    const msg = JSON.parse(evt.data);
    const { event, path } = msg.data;
    if (path === "/peaque.js") {
      location.reload();
      return;
    }
    const t = Date.now();
    import(path + "?t=" + t).then((mod) => {
      const scope = scopes.get(path);
      if (scope) performRefresh(scope, path);
    });
  };
  ws.onclose = () => setTimeout(connect, 1000);
}

connect();
`

// LoaderJS is the minimal client-side router/mount harness the
// generated frontend entry (internal/entrygen.Frontend) calls into.
const LoaderJS = `
export function createRouter(root) {
  const routes = new Map();
  return {
    register(path, component) { routes.set(path, component); },
    start() {
      const render = () => {
        const component = routes.get(location.pathname);
        root.innerHTML = "";
        if (component) root.appendChild(component());
      };
      window.addEventListener("popstate", render);
      render();
    },
  };
}

const root = document.getElementById("root");
if (root) {
  import("/peaque.js").then((mod) => mod.mount(root));
}
`
