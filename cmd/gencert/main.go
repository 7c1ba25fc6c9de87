// gencert 生成 SXG 所需的证书材料：EC 私钥、CSR 与带
// canSignHttpExchanges 扩展的 90 天证书，全部通过 openssl 完成。
// 任何一步都拒绝覆盖已存在的产物文件。
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	var (
		domain string
		outDir string
	)
	fs := flag.NewFlagSet("gencert", flag.ContinueOnError)
	fs.StringVar(&domain, "domain", "", "证书的域名（CN 与 SAN）")
	fs.StringVar(&outDir, "out", "credentials", "产物输出目录")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	if domain == "" {
		fmt.Fprintln(stdErr, "缺少 -domain")
		os.Exit(2)
	}

	if err := generate(domain, outDir); err != nil {
		fmt.Fprintf(stdErr, "生成失败: %v\n", err)
		os.Exit(1)
	}
}

// generate 依次产出私钥、CSR、扩展文件与证书，最后打印公钥摘要。
func generate(domain, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录: %w", err)
	}

	keyFile := filepath.Join(outDir, "privkey.pem")
	csrFile := filepath.Join(outDir, "cert.csr")
	extFile := filepath.Join(outDir, "ext.txt")
	certFile := filepath.Join(outDir, "cert.pem")

	if _, err := createPrivateKeyPEM(keyFile); err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "已写入 %s\n", keyFile)

	if _, err := createCertificateRequestPEM(domain, keyFile, csrFile); err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "已写入 %s\n", csrFile)

	if err := writeNewFile(extFile, []byte(extFileContent(domain))); err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "已写入 %s\n", extFile)

	if _, err := createCertificate(keyFile, csrFile, extFile, certFile); err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "已写入 %s\n", certFile)

	digest, err := certificatePublicKeySHA256(certFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdOut, "公钥 SHA-256: %s\n", base64.StdEncoding.EncodeToString(digest))
	return nil
}

// extFileContent 含 canSignHttpExchanges 扩展，它是 SXG 证书的硬性要求。
func extFileContent(domain string) string {
	return fmt.Sprintf("1.3.6.1.4.1.11129.2.1.22 = ASN1:NULL\nsubjectAltName = DNS:%s\n", domain)
}
