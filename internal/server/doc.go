// Package server 承载进程内共享的 HTTP 基础设施：Fiber 应用、请求 ID
// 中间件，以及所有出站请求复用的 HTTP/1.1 连接池。
package server
