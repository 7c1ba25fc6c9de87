package main

import (
	"crypto/sha256"
	"encoding/pem"
	"fmt"
	"os"
	"os/exec"
	"unicode/utf8"
)

// execute 运行命令并返回 stdout 字节；失败时附带 stderr 内容。
func execute(cmd *exec.Cmd) ([]byte, error) {
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("执行 %s 失败: %w: %s", cmd.Path, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("执行 %s 失败: %w", cmd.Path, err)
	}
	return output, nil
}

// executeAndParseStdout 运行命令并要求 stdout 是合法 UTF-8 文本。
func executeAndParseStdout(cmd *exec.Cmd) (string, error) {
	stdout, err := execute(cmd)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(stdout) {
		return "", fmt.Errorf("%s 的输出包含非 UTF-8 字节", cmd.Path)
	}
	return string(stdout), nil
}

// writeNewFile 将内容写入新文件；若文件已存在则报错，绝不覆盖。
func writeNewFile(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("拒绝覆盖已存在的文件 %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, content, 0o600)
}

// createPrivateKeyPEM 生成 prime256v1 私钥并写入 outputFile。
func createPrivateKeyPEM(outputFile string) (string, error) {
	pemText, err := executeAndParseStdout(exec.Command(
		"openssl", "ecparam",
		"-outform", "pem",
		"-name", "prime256v1",
		"-genkey",
	))
	if err != nil {
		return "", err
	}
	if err := writeNewFile(outputFile, []byte(pemText)); err != nil {
		return "", err
	}
	return pemText, nil
}

// createCertificateRequestPEM 基于私钥生成以 domain 为主体的 CSR。
func createCertificateRequestPEM(domain, privateKeyFile, outputFile string) (string, error) {
	pemText, err := executeAndParseStdout(exec.Command(
		"openssl", "req",
		"-new",
		"-sha256",
		"-key", privateKeyFile,
		"-subj", fmt.Sprintf("/CN=%s/O=Test/C=US", domain),
	))
	if err != nil {
		return "", err
	}
	if err := writeNewFile(outputFile, []byte(pemText)); err != nil {
		return "", err
	}
	return pemText, nil
}

// createCertificate 用私钥对 CSR 自签，产出 90 天有效期的证书。
func createCertificate(privateKeyFile, csrFile, extFile, outputFile string) (string, error) {
	pemText, err := executeAndParseStdout(exec.Command(
		"openssl", "x509",
		"-req",
		"-days", "90",
		"-in", csrFile,
		"-signkey", privateKeyFile,
		"-extfile", extFile,
	))
	if err != nil {
		return "", err
	}
	if err := writeNewFile(outputFile, []byte(pemText)); err != nil {
		return "", err
	}
	return pemText, nil
}

// certificatePublicKeySHA256 返回证书公钥（DER）的 SHA-256，供外带校验。
func certificatePublicKeySHA256(certificateFile string) ([]byte, error) {
	publicKeyPEM, err := executeAndParseStdout(exec.Command(
		"openssl", "x509",
		"-pubkey",
		"-noout",
		"-in", certificateFile,
	))
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("无法从 %s 的输出中解析公钥 PEM", certificateFile)
	}
	sum := sha256.Sum256(block.Bytes)
	return sum[:], nil
}
